package api

import (
	"bufio"
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/erazemk/uniforme/internal/db"
	"github.com/erazemk/uniforme/internal/events"
	"github.com/erazemk/uniforme/internal/model"
	"github.com/erazemk/uniforme/internal/store"
)

const testJWTSecret = "test-secret"

// Monday.
var testNow = time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)

type testEnv struct {
	server *httptest.Server
	db     *sql.DB
	bus    *events.Bus
	admin  string
}

func setupTestServer(t *testing.T) *testEnv {
	t.Helper()
	database := db.NewTestDB(t)
	bus := events.NewBus()
	router := newRouter(database, testJWTSecret, bus, func() time.Time { return testNow })
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	hash, _ := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.DefaultCost)
	store.CreateUser(context.Background(), database, "admin", string(hash), model.RoleAdmin)

	env := &testEnv{server: server, db: database, bus: bus}
	env.admin = env.login(t, "admin", "password")
	return env
}

func (e *testEnv) login(t *testing.T, username, password string) string {
	t.Helper()
	var data struct {
		Token string `json:"token"`
	}
	resp := e.do(t, "POST", "/api/auth/login", "", map[string]string{"username": username, "password": password})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login %s failed: %d", username, resp.StatusCode)
	}
	decodeEnvelope(t, resp, &data)
	if data.Token == "" {
		t.Fatal("empty token from login")
	}
	return data.Token
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, e.server.URL+path, reader)
	if err != nil {
		t.Fatal(err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	return resp
}

func decodeEnvelope(t *testing.T, resp *http.Response, data any) envelope {
	t.Helper()
	defer resp.Body.Close()
	var env struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
		Message string          `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("decoding envelope: %v", err)
	}
	if data != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, data); err != nil {
			t.Fatalf("decoding data: %v", err)
		}
	}
	return envelope{Success: env.Success, Message: env.Message}
}

func expectStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	if resp.StatusCode != want {
		t.Fatalf("%s %s: expected %d, got %d", resp.Request.Method, resp.Request.URL.Path, want, resp.StatusCode)
	}
}

// newStudent creates a student account with its profile and returns its
// token and student id. An empty gender leaves the profile incomplete.
func (e *testEnv) newStudent(t *testing.T, username, number, gender string) (string, int64) {
	t.Helper()
	var created struct {
		model.User
		Student *model.Student `json:"student"`
	}
	resp := e.do(t, "POST", "/api/users", e.admin, map[string]any{
		"username": username, "password": "student-pass", "role": model.RoleStudent,
		"student": map[string]string{
			"student_number": number, "name": username, "gender": gender, "education_level": "College",
		},
	})
	expectStatus(t, resp, http.StatusCreated)
	decodeEnvelope(t, resp, &created)
	if created.Student == nil {
		t.Fatalf("no student profile created for %s", username)
	}

	return e.login(t, username, "student-pass"), created.Student.ID
}

func (e *testEnv) newItem(t *testing.T, name, size string, stock int) model.Item {
	t.Helper()
	var item model.Item
	resp := e.do(t, "POST", "/api/items", e.admin, map[string]any{
		"name": name, "education_level": "College", "size": size, "stock": stock, "price": "450.00",
	})
	expectStatus(t, resp, http.StatusCreated)
	decodeEnvelope(t, resp, &item)
	return item
}

func (e *testEnv) setLimit(t *testing.T, limit int) {
	t.Helper()
	resp := e.do(t, "PUT", "/api/settings/limits", e.admin, map[string]int{"totalItemLimit": limit, "qrValidDays": 7})
	expectStatus(t, resp, http.StatusOK)
	resp.Body.Close()
}

func TestLoginEndpoint(t *testing.T) {
	env := setupTestServer(t)

	resp := env.do(t, "POST", "/api/auth/login", "", map[string]string{"username": "admin", "password": "wrong"})
	expectStatus(t, resp, http.StatusUnauthorized)
	out := decodeEnvelope(t, resp, nil)
	if out.Success || out.Message != "invalid credentials" {
		t.Errorf("unexpected error envelope: %+v", out)
	}
}

func TestLogoutRevokesToken(t *testing.T) {
	env := setupTestServer(t)

	resp := env.do(t, "POST", "/api/auth/logout", env.admin, nil)
	expectStatus(t, resp, http.StatusOK)
	resp.Body.Close()

	resp = env.do(t, "GET", "/api/items", env.admin, nil)
	expectStatus(t, resp, http.StatusUnauthorized)
	resp.Body.Close()
}

func TestCreateStudentAccount(t *testing.T) {
	env := setupTestServer(t)

	resp := env.do(t, "POST", "/api/users", env.admin, map[string]string{
		"username": "ana", "password": "student-pass", "role": model.RoleStudent,
	})
	expectStatus(t, resp, http.StatusBadRequest)
	resp.Body.Close()

	resp = env.do(t, "POST", "/api/users", env.admin, map[string]any{
		"username": "mojca", "password": "custodian-pass", "role": model.RoleCustodian,
		"student": map[string]string{"student_number": "2026-9"},
	})
	expectStatus(t, resp, http.StatusBadRequest)
	resp.Body.Close()

	var created struct {
		model.User
		Student *model.Student `json:"student"`
	}
	resp = env.do(t, "POST", "/api/users", env.admin, map[string]any{
		"username": "ana", "password": "student-pass", "role": model.RoleStudent,
		"student": map[string]string{"student_number": "2026-1", "gender": model.GenderFemale, "education_level": "College"},
	})
	expectStatus(t, resp, http.StatusCreated)
	decodeEnvelope(t, resp, &created)
	if created.Student == nil || created.Student.UserID == nil || *created.Student.UserID != created.ID {
		t.Fatalf("expected profile linked to user %d, got %+v", created.ID, created.Student)
	}
	if created.Student.Name != "ana" {
		t.Errorf("expected name to default to username, got %q", created.Student.Name)
	}

	// Same student number: neither the login nor the profile is created.
	resp = env.do(t, "POST", "/api/users", env.admin, map[string]any{
		"username": "bor", "password": "student-pass", "role": model.RoleStudent,
		"student": map[string]string{"student_number": "2026-1"},
	})
	expectStatus(t, resp, http.StatusConflict)
	resp.Body.Close()
	if u, _ := store.GetUserByUsername(context.Background(), env.db, "bor"); u != nil {
		t.Errorf("expected no orphaned student login, got %+v", u)
	}

	var me struct {
		Student *model.Student `json:"student"`
	}
	resp = env.do(t, "GET", "/api/auth/me", env.login(t, "ana", "student-pass"), nil)
	expectStatus(t, resp, http.StatusOK)
	decodeEnvelope(t, resp, &me)
	if me.Student == nil || me.Student.ID != created.Student.ID {
		t.Errorf("expected login to carry student %d, got %+v", created.Student.ID, me.Student)
	}
}

func TestRoleChecks(t *testing.T) {
	env := setupTestServer(t)
	token, _ := env.newStudent(t, "ana", "2026-1", model.GenderFemale)

	resp := env.do(t, "POST", "/api/items", token, map[string]any{"name": "Polo", "education_level": "College"})
	expectStatus(t, resp, http.StatusForbidden)
	resp.Body.Close()

	resp = env.do(t, "GET", "/api/items", "", nil)
	expectStatus(t, resp, http.StatusUnauthorized)
	resp.Body.Close()
}

func TestItemsAPIFlow(t *testing.T) {
	env := setupTestServer(t)
	env.newItem(t, "Polo Shirt", "M", 25)

	resp := env.do(t, "POST", "/api/items", env.admin, map[string]any{
		"name": "Logo Patch", "education_level": model.EducationLevelAll, "stock": 0,
	})
	expectStatus(t, resp, http.StatusCreated)
	resp.Body.Close()
	resp = env.do(t, "POST", "/api/items", env.admin, map[string]any{
		"name": "Blouse", "education_level": "Senior High", "stock": 3,
	})
	expectStatus(t, resp, http.StatusCreated)
	resp.Body.Close()

	var items []model.Item
	resp = env.do(t, "GET", "/api/items?userEducationLevel=College", env.admin, nil)
	expectStatus(t, resp, http.StatusOK)
	out := decodeEnvelope(t, resp, &items)
	if !out.Success || len(items) != 2 {
		t.Fatalf("expected 2 college items, got %d", len(items))
	}

	resp = env.do(t, "POST", "/api/items", env.admin, map[string]any{"name": "Bad", "education_level": "College", "for_gender": "Other"})
	expectStatus(t, resp, http.StatusBadRequest)
	resp.Body.Close()
}

func TestInventoryAdjust(t *testing.T) {
	env := setupTestServer(t)
	item := env.newItem(t, "Polo Shirt", "M", 2)

	var out map[string]int
	resp := env.do(t, "POST", "/api/inventory/adjust", env.admin, map[string]any{"item_id": item.ID, "delta": 10})
	expectStatus(t, resp, http.StatusOK)
	decodeEnvelope(t, resp, &out)
	if out["stock"] != 12 {
		t.Errorf("expected stock 12, got %d", out["stock"])
	}

	resp = env.do(t, "POST", "/api/inventory/adjust", env.admin, map[string]any{"item_id": item.ID, "delta": -20})
	expectStatus(t, resp, http.StatusConflict)
	resp.Body.Close()
}

func TestMaxQuantities(t *testing.T) {
	env := setupTestServer(t)
	token, studentID := env.newStudent(t, "ana", "2026-1", model.GenderFemale)
	env.setLimit(t, 4)

	resp := env.do(t, "PUT", "/api/students/"+itoa(studentID)+"/permissions", env.admin, map[string]int{"Logo Patch": 0})
	expectStatus(t, resp, http.StatusOK)
	resp.Body.Close()

	var snap model.LimitSnapshot
	resp = env.do(t, "GET", "/api/auth/max-quantities", token, nil)
	expectStatus(t, resp, http.StatusOK)
	json.NewDecoder(resp.Body).Decode(&snap)
	resp.Body.Close()

	if snap.TotalItemLimit == nil || *snap.TotalItemLimit != 4 {
		t.Errorf("expected totalItemLimit 4, got %v", snap.TotalItemLimit)
	}
	if n, ok := snap.MaxFor("logo patch"); !ok || n != 0 {
		t.Errorf("expected explicit zero for logo patch, got %d, %v", n, ok)
	}
	if snap.ProfileIncomplete || snap.BlockedDueToVoid {
		t.Errorf("unexpected flags: %+v", snap)
	}

	resp = env.do(t, "GET", "/api/auth/max-quantities", env.admin, nil)
	expectStatus(t, resp, http.StatusForbidden)
	resp.Body.Close()
}

func TestMe(t *testing.T) {
	env := setupTestServer(t)
	token, studentID := env.newStudent(t, "ana", "2026-1", model.GenderFemale)

	var me struct {
		User    model.User     `json:"user"`
		Student *model.Student `json:"student"`
	}
	resp := env.do(t, "GET", "/api/auth/me", token, nil)
	expectStatus(t, resp, http.StatusOK)
	decodeEnvelope(t, resp, &me)
	if me.User.Username != "ana" || me.Student == nil || me.Student.ID != studentID {
		t.Errorf("unexpected profile %+v / %+v", me.User, me.Student)
	}

	var adminMe struct {
		Student *model.Student `json:"student"`
	}
	resp = env.do(t, "GET", "/api/auth/me", env.admin, nil)
	expectStatus(t, resp, http.StatusOK)
	decodeEnvelope(t, resp, &adminMe)
	if adminMe.Student != nil {
		t.Errorf("admin should have no student profile, got %+v", adminMe.Student)
	}
}

func TestMaxQuantitiesIncompleteProfile(t *testing.T) {
	env := setupTestServer(t)
	token, _ := env.newStudent(t, "bor", "2026-2", "")

	resp := env.do(t, "GET", "/api/auth/max-quantities", token, nil)
	expectStatus(t, resp, http.StatusBadRequest)

	var snap model.LimitSnapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		t.Fatalf("decoding snapshot: %v", err)
	}
	resp.Body.Close()
	if !snap.ProfileIncomplete {
		t.Error("expected profileIncomplete in the 400 body")
	}
}

func TestOrderFlow(t *testing.T) {
	env := setupTestServer(t)
	token, studentID := env.newStudent(t, "ana", "2026-1", model.GenderFemale)
	env.setLimit(t, 4)
	item := env.newItem(t, "Polo Shirt", "M", 5)

	ch, unsubscribe := env.bus.Subscribe(16)
	defer unsubscribe()

	var order model.Order
	resp := env.do(t, "POST", "/api/orders", token, map[string]any{
		"items": []map[string]any{{"item_id": item.ID, "quantity": 1}},
	})
	expectStatus(t, resp, http.StatusCreated)
	decodeEnvelope(t, resp, &order)
	if order.OrderType != model.OrderTypeRegular || order.StudentID != studentID {
		t.Fatalf("unexpected order: %+v", order)
	}

	select {
	case ev := <-ch:
		if ev.Name != events.OrderCreated || ev.OrderID != order.ID {
			t.Errorf("unexpected event: %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("expected order:created event")
	}

	// A cap of one is already used by the pending order.
	resp = env.do(t, "POST", "/api/orders", token, map[string]any{
		"items": []map[string]any{{"item_id": item.ID, "quantity": 1}},
	})
	expectStatus(t, resp, http.StatusUnprocessableEntity)
	resp.Body.Close()

	var rec receiptResponse
	resp = env.do(t, "GET", "/api/orders/"+order.ID+"/receipt", token, nil)
	expectStatus(t, resp, http.StatusOK)
	decodeEnvelope(t, resp, &rec)
	if rec.RemainingValidDays != 7 || rec.ExpiresOn != "2026-10-28" {
		t.Errorf("unexpected validity: %d days, expires %s", rec.RemainingValidDays, rec.ExpiresOn)
	}
	if !strings.Contains(rec.QR, `"type":"order_receipt"`) {
		t.Errorf("unexpected QR payload: %s", rec.QR)
	}

	var list []model.Order
	resp = env.do(t, "GET", "/api/orders", token, nil)
	expectStatus(t, resp, http.StatusOK)
	decodeEnvelope(t, resp, &list)
	if len(list) != 1 {
		t.Errorf("expected 1 order, got %d", len(list))
	}

	// Students cannot claim; staff can once the order is ready.
	resp = env.do(t, "POST", "/api/orders/"+order.ID+"/claim", token, nil)
	expectStatus(t, resp, http.StatusForbidden)
	resp.Body.Close()

	resp = env.do(t, "POST", "/api/orders/"+order.ID+"/claim", env.admin, nil)
	expectStatus(t, resp, http.StatusConflict)
	resp.Body.Close()

	resp = env.do(t, "PUT", "/api/orders/"+order.ID+"/status", env.admin, map[string]string{"status": model.OrderStatusReady})
	expectStatus(t, resp, http.StatusOK)
	resp.Body.Close()

	resp = env.do(t, "POST", "/api/orders/"+order.ID+"/claim", env.admin, nil)
	expectStatus(t, resp, http.StatusOK)
	decodeEnvelope(t, resp, &order)
	if order.Status != model.OrderStatusClaimed {
		t.Errorf("expected claimed, got %q", order.Status)
	}
}

func TestStudentCancelsOwnOrderOnly(t *testing.T) {
	env := setupTestServer(t)
	ana, _ := env.newStudent(t, "ana", "2026-1", model.GenderFemale)
	bor, _ := env.newStudent(t, "bor", "2026-2", model.GenderMale)
	env.setLimit(t, 4)
	item := env.newItem(t, "Polo Shirt", "M", 5)

	var order model.Order
	resp := env.do(t, "POST", "/api/orders", ana, map[string]any{
		"items": []map[string]any{{"item_id": item.ID, "quantity": 1}},
	})
	expectStatus(t, resp, http.StatusCreated)
	decodeEnvelope(t, resp, &order)

	resp = env.do(t, "GET", "/api/orders/"+order.ID, bor, nil)
	expectStatus(t, resp, http.StatusNotFound)
	resp.Body.Close()

	resp = env.do(t, "POST", "/api/orders/"+order.ID+"/cancel", bor, nil)
	expectStatus(t, resp, http.StatusNotFound)
	resp.Body.Close()

	resp = env.do(t, "POST", "/api/orders/"+order.ID+"/cancel", ana, nil)
	expectStatus(t, resp, http.StatusOK)
	decodeEnvelope(t, resp, &order)
	if order.Status != model.OrderStatusCancelled {
		t.Errorf("expected cancelled, got %q", order.Status)
	}

	got, _ := store.GetItem(context.Background(), env.db, item.ID)
	if got.Stock != 5 {
		t.Errorf("expected stock back to 5, got %d", got.Stock)
	}
}

func TestUnblockStudent(t *testing.T) {
	env := setupTestServer(t)
	_, studentID := env.newStudent(t, "ana", "2026-1", model.GenderFemale)
	store.SetVoidBlock(context.Background(), env.db, studentID, true)

	resp := env.do(t, "POST", "/api/students/"+itoa(studentID)+"/unblock", env.admin, nil)
	expectStatus(t, resp, http.StatusOK)
	resp.Body.Close()

	st, _ := store.GetStudent(context.Background(), env.db, studentID)
	if st.BlockedDueToVoid {
		t.Error("expected student to be unblocked")
	}
}

func TestEventStream(t *testing.T) {
	env := setupTestServer(t)
	anaToken, anaID := env.newStudent(t, "ana", "2026-1", model.GenderFemale)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, "GET", env.server.URL+"/api/events", nil)
	req.Header.Set("Authorization", "Bearer "+anaToken)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("unexpected content type %q", ct)
	}

	reader := bufio.NewReader(resp.Body)
	if line, _ := reader.ReadString('\n'); !strings.HasPrefix(line, ": connected") {
		t.Fatalf("expected connected comment, got %q", line)
	}

	other := events.New(events.OrderUpdated)
	other.StudentID = anaID + 100
	env.bus.Publish(other)
	mine := events.New(events.OrderUpdated)
	mine.StudentID = anaID
	mine.OrderID = "c0ffee00-0000-4000-8000-000000000001"
	env.bus.Publish(mine)

	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			t.Fatalf("reading stream: %v", err)
		}
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var ev events.Event
		json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev)
		if ev.ID != mine.ID {
			t.Fatalf("expected only the student's own event, got %+v", ev)
		}
		return
	}
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}
