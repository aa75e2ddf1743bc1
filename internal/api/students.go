package api

import (
	"database/sql"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/erazemk/uniforme/internal/events"
	"github.com/erazemk/uniforme/internal/model"
	"github.com/erazemk/uniforme/internal/store"
)

// StudentsHandler handles student profile endpoints.
type StudentsHandler struct {
	DB  *sql.DB
	Bus *events.Bus
}

type studentRequest struct {
	UserID         *int64 `json:"user_id"`
	StudentNumber  string `json:"student_number"`
	Name           string `json:"name"`
	Gender         string `json:"gender"`
	EducationLevel string `json:"education_level"`
	StudentType    string `json:"student_type"`
}

func (req *studentRequest) validate() string {
	if req.StudentType == "" {
		req.StudentType = model.StudentTypeNew
	}
	switch {
	case req.Name == "":
		return "name required"
	case req.StudentType != model.StudentTypeNew && req.StudentType != model.StudentTypeOld:
		return "student_type must be 'new' or 'old'"
	case req.Gender != "" && req.Gender != model.GenderMale && req.Gender != model.GenderFemale:
		return "gender must be 'Male' or 'Female'"
	}
	return ""
}

func (req studentRequest) input() store.StudentInput {
	return store.StudentInput{
		UserID:         req.UserID,
		StudentNumber:  req.StudentNumber,
		Name:           req.Name,
		Gender:         req.Gender,
		EducationLevel: req.EducationLevel,
		StudentType:    req.StudentType,
	}
}

func (h *StudentsHandler) limitsChanged(studentID int64) {
	ev := events.New(events.StudentPermissionsUpdated)
	ev.StudentID = studentID
	publish(h.Bus, ev)
}

// List handles GET /api/students[?education_level=].
func (h *StudentsHandler) List(w http.ResponseWriter, r *http.Request) {
	students, err := store.ListStudents(r.Context(), h.DB, r.URL.Query().Get("education_level"))
	if err != nil {
		storeError(w, err, "list students")
		return
	}
	if students == nil {
		students = []model.Student{}
	}
	jsonResponse(w, http.StatusOK, students)
}

// Create handles POST /api/students.
func (h *StudentsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req studentRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.StudentNumber == "" {
		jsonError(w, http.StatusBadRequest, "student_number required")
		return
	}
	if msg := req.validate(); msg != "" {
		jsonError(w, http.StatusBadRequest, msg)
		return
	}

	if req.UserID != nil {
		user, err := store.GetUser(r.Context(), h.DB, *req.UserID)
		if err != nil {
			storeError(w, err, "load user")
			return
		}
		if user == nil || user.Role != model.RoleStudent {
			jsonError(w, http.StatusBadRequest, "user_id must belong to a student account")
			return
		}
	}

	student, err := store.CreateStudent(r.Context(), h.DB, req.input())
	if err != nil {
		jsonError(w, http.StatusConflict, "student number already exists")
		return
	}

	claims := GetClaims(r.Context())
	slog.Info("student created", "user", claims.Username, "student", student.StudentNumber)
	jsonResponse(w, http.StatusCreated, student)
}

func (h *StudentsHandler) find(w http.ResponseWriter, r *http.Request) *model.Student {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid student id")
		return nil
	}
	student, err := store.GetStudent(r.Context(), h.DB, id)
	if err != nil {
		storeError(w, err, "get student")
		return nil
	}
	if student == nil || student.DeletedAt != nil {
		jsonError(w, http.StatusNotFound, "student not found")
		return nil
	}
	return student
}

// Get handles GET /api/students/{id}.
func (h *StudentsHandler) Get(w http.ResponseWriter, r *http.Request) {
	if student := h.find(w, r); student != nil {
		jsonResponse(w, http.StatusOK, student)
	}
}

// Update handles PUT /api/students/{id}.
func (h *StudentsHandler) Update(w http.ResponseWriter, r *http.Request) {
	student := h.find(w, r)
	if student == nil {
		return
	}

	var req studentRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if msg := req.validate(); msg != "" {
		jsonError(w, http.StatusBadRequest, msg)
		return
	}

	if err := store.UpdateStudent(r.Context(), h.DB, student.ID, req.input()); err != nil {
		storeError(w, err, "update student")
		return
	}

	updated, _ := store.GetStudent(r.Context(), h.DB, student.ID)
	h.limitsChanged(student.ID)
	jsonResponse(w, http.StatusOK, updated)
}

// GetPermissions handles GET /api/students/{id}/permissions.
func (h *StudentsHandler) GetPermissions(w http.ResponseWriter, r *http.Request) {
	student := h.find(w, r)
	if student == nil {
		return
	}
	caps, err := store.GetPermissions(r.Context(), h.DB, student.ID)
	if err != nil {
		storeError(w, err, "get permissions")
		return
	}
	jsonResponse(w, http.StatusOK, caps)
}

// SetPermissions handles PUT /api/students/{id}/permissions. The body maps
// item names to caps and replaces the previous set.
func (h *StudentsHandler) SetPermissions(w http.ResponseWriter, r *http.Request) {
	student := h.find(w, r)
	if student == nil {
		return
	}

	var caps map[string]int
	if err := decodeJSON(r, &caps); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	for name, n := range caps {
		if n < 0 {
			jsonError(w, http.StatusBadRequest, "max quantity for "+name+" must not be negative")
			return
		}
	}

	if err := store.SetPermissions(r.Context(), h.DB, student.ID, caps); err != nil {
		storeError(w, err, "set permissions")
		return
	}

	claims := GetClaims(r.Context())
	slog.Info("student permissions updated", "user", claims.Username, "student", student.StudentNumber, "entries", len(caps))
	h.limitsChanged(student.ID)

	updated, _ := store.GetPermissions(r.Context(), h.DB, student.ID)
	jsonResponse(w, http.StatusOK, updated)
}

// Unblock handles POST /api/students/{id}/unblock, lifting a void block.
func (h *StudentsHandler) Unblock(w http.ResponseWriter, r *http.Request) {
	student := h.find(w, r)
	if student == nil {
		return
	}

	if err := store.SetVoidBlock(r.Context(), h.DB, student.ID, false); err != nil {
		storeError(w, err, "unblock student")
		return
	}

	claims := GetClaims(r.Context())
	slog.Info("student unblocked", "user", claims.Username, "student", student.StudentNumber)
	h.limitsChanged(student.ID)
	jsonMessage(w, http.StatusOK, "student unblocked")
}
