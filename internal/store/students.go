package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/erazemk/uniforme/internal/model"
)

const studentColumns = `id, user_id, student_number, name, gender, education_level,
	student_type, blocked_due_to_void, created_at, deleted_at`

func scanStudent(row interface{ Scan(...any) error }) (*model.Student, error) {
	s := &model.Student{}
	var gender, level sql.NullString
	err := row.Scan(&s.ID, &s.UserID, &s.StudentNumber, &s.Name, &gender, &level,
		&s.StudentType, &s.BlockedDueToVoid, &s.CreatedAt, &s.DeletedAt)
	if err != nil {
		return nil, err
	}
	s.Gender = gender.String
	s.EducationLevel = level.String
	return s, nil
}

// StudentInput holds the editable fields of a student profile.
type StudentInput struct {
	UserID         *int64
	StudentNumber  string
	Name           string
	Gender         string
	EducationLevel string
	StudentType    string
}

// CreateStudent creates a student profile.
func CreateStudent(ctx context.Context, db *sql.DB, in StudentInput) (*model.Student, error) {
	id, err := insertStudent(ctx, db, in)
	if err != nil {
		return nil, err
	}
	return GetStudent(ctx, db, id)
}

// CreateStudentAccount creates a student login together with its profile.
// Neither is created if the other fails, so a student account never exists
// without something to order for.
func CreateStudentAccount(ctx context.Context, db *sql.DB, username, passwordHash string, in StudentInput) (*model.User, *model.Student, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	userID, err := insertUser(ctx, tx, username, passwordHash, model.RoleStudent)
	if err != nil {
		return nil, nil, err
	}
	in.UserID = &userID
	studentID, err := insertStudent(ctx, tx, in)
	if err != nil {
		return nil, nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("committing student account: %w", err)
	}

	user, err := GetUser(ctx, db, userID)
	if err != nil {
		return nil, nil, err
	}
	student, err := GetStudent(ctx, db, studentID)
	if err != nil {
		return nil, nil, err
	}
	return user, student, nil
}

func insertStudent(ctx context.Context, q querier, in StudentInput) (int64, error) {
	if in.StudentType == "" {
		in.StudentType = model.StudentTypeNew
	}
	result, err := q.ExecContext(ctx,
		`INSERT INTO students (user_id, student_number, name, gender, education_level, student_type)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		in.UserID, in.StudentNumber, in.Name, nullString(in.Gender), nullString(in.EducationLevel), in.StudentType,
	)
	if err != nil {
		return 0, fmt.Errorf("creating student: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("getting student id: %w", err)
	}
	return id, nil
}

// GetStudent returns a student by ID.
func GetStudent(ctx context.Context, db *sql.DB, id int64) (*model.Student, error) {
	return getStudent(ctx, db, `SELECT `+studentColumns+` FROM students WHERE id = ?`, id)
}

// GetStudentByUserID returns the active student profile linked to a user.
func GetStudentByUserID(ctx context.Context, db *sql.DB, userID int64) (*model.Student, error) {
	return getStudent(ctx, db,
		`SELECT `+studentColumns+` FROM students WHERE user_id = ? AND deleted_at IS NULL`, userID)
}

func getStudent(ctx context.Context, q querier, query string, arg any) (*model.Student, error) {
	s, err := scanStudent(q.QueryRowContext(ctx, query, arg))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting student: %w", err)
	}
	return s, nil
}

// ListStudents returns all non-deleted students, optionally filtered by
// education level.
func ListStudents(ctx context.Context, db *sql.DB, educationLevel string) ([]model.Student, error) {
	query := `SELECT ` + studentColumns + ` FROM students WHERE deleted_at IS NULL`
	var args []any
	if educationLevel != "" {
		query += ` AND education_level = ?`
		args = append(args, educationLevel)
	}
	query += ` ORDER BY name`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing students: %w", err)
	}
	defer rows.Close()

	var students []model.Student
	for rows.Next() {
		s, err := scanStudent(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning student: %w", err)
		}
		students = append(students, *s)
	}
	return students, rows.Err()
}

// UpdateStudent updates a student's profile fields.
func UpdateStudent(ctx context.Context, db *sql.DB, id int64, in StudentInput) error {
	_, err := db.ExecContext(ctx,
		`UPDATE students SET name = ?, gender = ?, education_level = ?, student_type = ?
		 WHERE id = ? AND deleted_at IS NULL`,
		in.Name, nullString(in.Gender), nullString(in.EducationLevel), in.StudentType, id,
	)
	if err != nil {
		return fmt.Errorf("updating student: %w", err)
	}
	return nil
}

// SetVoidBlock sets or clears the student's void block.
func SetVoidBlock(ctx context.Context, db *sql.DB, id int64, blocked bool) error {
	return setVoidBlock(ctx, db, id, blocked)
}

func setVoidBlock(ctx context.Context, q querier, id int64, blocked bool) error {
	_, err := q.ExecContext(ctx,
		`UPDATE students SET blocked_due_to_void = ? WHERE id = ?`, blocked, id)
	if err != nil {
		return fmt.Errorf("setting void block: %w", err)
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
