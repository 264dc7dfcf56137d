// Package database implements the record store on SQLite. All writes
// funnel through a single goroutine, which is the discipline SQLite
// rewards; reads run concurrently under WAL mode.
package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	dbconfig "coursehub/pkg/database"
	"coursehub/pkg/interfaces"
	"coursehub/pkg/types"
)

// Manager implements interfaces.Store.
type Manager struct {
	db           *sql.DB
	config       *dbconfig.Config
	writeChannel chan writeOperation
	shutdown     chan struct{}
	wg           sync.WaitGroup
	closed       bool
	mu           sync.RWMutex
}

type writeOperation struct {
	operation func(*sql.DB) error
	result    chan error
}

// NewManager opens the database, applies the SQLite pragmas, and starts
// the single-writer goroutine.
func NewManager(config *dbconfig.Config) (*Manager, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid database config: %w", err)
	}

	db, err := sql.Open("sqlite3", config.DatabasePath+"?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(config.MaxConnections)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)
	db.SetConnMaxIdleTime(config.ConnMaxIdleTime)

	if err := dbconfig.ApplyOptimizations(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply SQLite optimizations: %w", err)
	}

	manager := &Manager{
		db:           db,
		config:       config,
		writeChannel: make(chan writeOperation, 100),
		shutdown:     make(chan struct{}),
	}

	manager.wg.Add(1)
	go manager.writeLoop()

	return manager, nil
}

func (m *Manager) writeLoop() {
	defer m.wg.Done()

	for {
		select {
		case op := <-m.writeChannel:
			op.result <- op.operation(m.db)

		case <-m.shutdown:
			log.Println("Database write loop shutting down")
			return
		}
	}
}

func (m *Manager) executeWrite(operation func(*sql.DB) error) error {
	m.mu.RLock()
	if m.closed {
		m.mu.RUnlock()
		return fmt.Errorf("database manager is closed")
	}
	m.mu.RUnlock()

	result := make(chan error, 1)

	select {
	case m.writeChannel <- writeOperation{operation: operation, result: result}:
		return <-result
	case <-time.After(30 * time.Second):
		return fmt.Errorf("write operation timeout")
	case <-m.shutdown:
		return fmt.Errorf("database manager is shutting down")
	}
}

// CreateUser inserts a new user. A duplicate email maps to
// interfaces.ErrDuplicateEmail.
func (m *Manager) CreateUser(ctx context.Context, user *types.User) error {
	return m.executeWrite(func(db *sql.DB) error {
		query := `
			INSERT INTO users (id, email, password_hash, first_name, last_name, role, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`
		_, err := db.ExecContext(ctx, query,
			user.ID,
			user.Email,
			user.PasswordHash,
			user.FirstName,
			user.LastName,
			user.Role,
			user.CreatedAt,
		)
		if err != nil {
			if strings.Contains(err.Error(), "UNIQUE constraint failed: users.email") {
				return interfaces.ErrDuplicateEmail
			}
			return fmt.Errorf("failed to insert user: %w", err)
		}
		return nil
	})
}

// GetUser retrieves a user by ID.
func (m *Manager) GetUser(ctx context.Context, userID string) (*types.User, error) {
	return m.scanUser(m.db.QueryRowContext(ctx, `
		SELECT id, email, password_hash, first_name, last_name, role, created_at
		FROM users WHERE id = ?
	`, userID))
}

// GetUserByEmail retrieves a user by email, for login.
func (m *Manager) GetUserByEmail(ctx context.Context, email string) (*types.User, error) {
	return m.scanUser(m.db.QueryRowContext(ctx, `
		SELECT id, email, password_hash, first_name, last_name, role, created_at
		FROM users WHERE email = ?
	`, email))
}

func (m *Manager) scanUser(row *sql.Row) (*types.User, error) {
	var user types.User
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.FirstName,
		&user.LastName,
		&user.Role,
		&user.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, interfaces.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	return &user, nil
}

// CreateCourse inserts a new course with an empty roster unless one is
// provided.
func (m *Manager) CreateCourse(ctx context.Context, course *types.Course) error {
	return m.executeWrite(func(db *sql.DB) error {
		studentIDs, err := marshalStudentIDs(course.StudentIDs)
		if err != nil {
			return err
		}

		query := `
			INSERT INTO courses (id, title, description, category, teacher_id, student_ids, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`
		_, err = db.ExecContext(ctx, query,
			course.ID,
			course.Title,
			course.Description,
			course.Category,
			course.TeacherID,
			studentIDs,
			course.CreatedAt,
			course.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert course: %w", err)
		}
		return nil
	})
}

// GetCourse retrieves a course by ID.
func (m *Manager) GetCourse(ctx context.Context, courseID string) (*types.Course, error) {
	row := m.db.QueryRowContext(ctx, `
		SELECT id, title, description, category, teacher_id, student_ids, created_at, updated_at
		FROM courses WHERE id = ?
	`, courseID)

	course, err := scanCourse(row.Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, interfaces.ErrCourseNotFound
		}
		return nil, fmt.Errorf("failed to query course: %w", err)
	}
	return course, nil
}

// UpdateCourse updates mutable course fields.
func (m *Manager) UpdateCourse(ctx context.Context, course *types.Course) error {
	return m.executeWrite(func(db *sql.DB) error {
		studentIDs, err := marshalStudentIDs(course.StudentIDs)
		if err != nil {
			return err
		}

		query := `
			UPDATE courses
			SET title = ?, description = ?, category = ?, student_ids = ?, updated_at = ?
			WHERE id = ?
		`
		res, err := db.ExecContext(ctx, query,
			course.Title,
			course.Description,
			course.Category,
			studentIDs,
			course.UpdatedAt,
			course.ID,
		)
		if err != nil {
			return fmt.Errorf("failed to update course: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return interfaces.ErrCourseNotFound
		}
		return nil
	})
}

// ListCourses returns all courses, newest first.
func (m *Manager) ListCourses(ctx context.Context) ([]*types.Course, error) {
	return m.queryCourses(ctx, `
		SELECT id, title, description, category, teacher_id, student_ids, created_at, updated_at
		FROM courses ORDER BY created_at DESC
	`)
}

// ListCoursesForUser returns the courses a user teaches or is enrolled
// in; admins see everything.
func (m *Manager) ListCoursesForUser(ctx context.Context, userID, role string) ([]*types.Course, error) {
	switch role {
	case types.RoleTeacher:
		return m.queryCourses(ctx, `
			SELECT id, title, description, category, teacher_id, student_ids, created_at, updated_at
			FROM courses WHERE teacher_id = ? ORDER BY created_at DESC
		`, userID)
	case types.RoleStudent:
		// Roster is a JSON array; filter after scan rather than
		// leaning on SQLite JSON functions.
		courses, err := m.ListCourses(ctx)
		if err != nil {
			return nil, err
		}
		enrolled := make([]*types.Course, 0, len(courses))
		for _, course := range courses {
			if course.IsEnrolled(userID) {
				enrolled = append(enrolled, course)
			}
		}
		return enrolled, nil
	default:
		return m.ListCourses(ctx)
	}
}

// EnrollStudent adds a user to the course roster atomically under the
// single writer.
func (m *Manager) EnrollStudent(ctx context.Context, courseID, userID string) error {
	return m.executeWrite(func(db *sql.DB) error {
		row := db.QueryRowContext(ctx, `
			SELECT id, title, description, category, teacher_id, student_ids, created_at, updated_at
			FROM courses WHERE id = ?
		`, courseID)

		course, err := scanCourse(row.Scan)
		if err != nil {
			if err == sql.ErrNoRows {
				return interfaces.ErrCourseNotFound
			}
			return fmt.Errorf("failed to query course: %w", err)
		}

		if course.IsEnrolled(userID) {
			return interfaces.ErrAlreadyEnrolled
		}

		studentIDs, err := marshalStudentIDs(append(course.StudentIDs, userID))
		if err != nil {
			return err
		}

		_, err = db.ExecContext(ctx,
			"UPDATE courses SET student_ids = ?, updated_at = ? WHERE id = ?",
			studentIDs, time.Now(), courseID,
		)
		if err != nil {
			return fmt.Errorf("failed to update roster: %w", err)
		}
		return nil
	})
}

// CreateLesson inserts a new lesson.
func (m *Manager) CreateLesson(ctx context.Context, lesson *types.Lesson) error {
	return m.executeWrite(func(db *sql.DB) error {
		query := `
			INSERT INTO lessons (id, course_id, title, content, position, created_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`
		_, err := db.ExecContext(ctx, query,
			lesson.ID,
			lesson.CourseID,
			lesson.Title,
			lesson.Content,
			lesson.Position,
			lesson.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert lesson: %w", err)
		}
		return nil
	})
}

// ListLessons returns a course's lessons in display order.
func (m *Manager) ListLessons(ctx context.Context, courseID string) ([]*types.Lesson, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT id, course_id, title, content, position, created_at
		FROM lessons WHERE course_id = ? ORDER BY position ASC, created_at ASC
	`, courseID)
	if err != nil {
		return nil, fmt.Errorf("failed to query lessons: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var lessons []*types.Lesson
	for rows.Next() {
		var lesson types.Lesson
		err := rows.Scan(
			&lesson.ID,
			&lesson.CourseID,
			&lesson.Title,
			&lesson.Content,
			&lesson.Position,
			&lesson.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan lesson row: %w", err)
		}
		lessons = append(lessons, &lesson)
	}
	return lessons, rows.Err()
}

// CreateAssignment inserts a new assignment.
func (m *Manager) CreateAssignment(ctx context.Context, assignment *types.Assignment) error {
	return m.executeWrite(func(db *sql.DB) error {
		query := `
			INSERT INTO assignments (id, course_id, title, description, due_date, created_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`
		_, err := db.ExecContext(ctx, query,
			assignment.ID,
			assignment.CourseID,
			assignment.Title,
			assignment.Description,
			assignment.DueDate,
			assignment.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert assignment: %w", err)
		}
		return nil
	})
}

// ListAssignments returns a course's assignments ordered by due date.
func (m *Manager) ListAssignments(ctx context.Context, courseID string) ([]*types.Assignment, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT id, course_id, title, description, due_date, created_at
		FROM assignments WHERE course_id = ? ORDER BY due_date ASC, created_at ASC
	`, courseID)
	if err != nil {
		return nil, fmt.Errorf("failed to query assignments: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var assignments []*types.Assignment
	for rows.Next() {
		var assignment types.Assignment
		var dueDate sql.NullTime
		err := rows.Scan(
			&assignment.ID,
			&assignment.CourseID,
			&assignment.Title,
			&assignment.Description,
			&dueDate,
			&assignment.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan assignment row: %w", err)
		}
		if dueDate.Valid {
			assignment.DueDate = &dueDate.Time
		}
		assignments = append(assignments, &assignment)
	}
	return assignments, rows.Err()
}

// HealthCheck validates database connectivity.
func (m *Manager) HealthCheck(ctx context.Context) error {
	if err := m.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	row := m.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users LIMIT 1")
	var count int
	if err := row.Scan(&count); err != nil {
		return fmt.Errorf("database read test failed: %w", err)
	}
	return nil
}

// GetDB returns the underlying connection, for migrations and schema
// validation.
func (m *Manager) GetDB() *sql.DB {
	return m.db
}

// Close shuts down the write loop and the connection pool.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	close(m.shutdown)
	m.wg.Wait()

	if err := m.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

func (m *Manager) queryCourses(ctx context.Context, query string, args ...interface{}) ([]*types.Course, error) {
	rows, err := m.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query courses: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var courses []*types.Course
	for rows.Next() {
		course, err := scanCourse(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan course row: %w", err)
		}
		courses = append(courses, course)
	}
	return courses, rows.Err()
}

func scanCourse(scan func(...interface{}) error) (*types.Course, error) {
	var course types.Course
	var studentIDsJSON string

	err := scan(
		&course.ID,
		&course.Title,
		&course.Description,
		&course.Category,
		&course.TeacherID,
		&studentIDsJSON,
		&course.CreatedAt,
		&course.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(studentIDsJSON), &course.StudentIDs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal student IDs: %w", err)
	}
	return &course, nil
}

func marshalStudentIDs(ids []string) (string, error) {
	if ids == nil {
		ids = []string{}
	}
	data, err := json.Marshal(ids)
	if err != nil {
		return "", fmt.Errorf("failed to marshal student IDs: %w", err)
	}
	return string(data), nil
}
