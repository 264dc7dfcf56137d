// Package api exposes the REST surface: account registration and login,
// course CRUD, enrollment, lessons, assignments, and the health check.
// No business state lives here; handlers translate HTTP to store and
// auth calls.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"coursehub/internal/auth"
	"coursehub/pkg/interfaces"
	"coursehub/pkg/types"
)

// ConnectionStats reports live WebSocket counts for the health endpoint.
type ConnectionStats interface {
	Count() int
}

type contextKey string

const claimsKey contextKey = "claims"

type Server struct {
	store  interfaces.Store
	tokens *auth.TokenManager
	hasher *auth.PasswordHasher
	stats  ConnectionStats
	router *http.ServeMux
}

func NewServer(store interfaces.Store, tokens *auth.TokenManager, hasher *auth.PasswordHasher, stats ConnectionStats) *Server {
	s := &Server{
		store:  store,
		tokens: tokens,
		hasher: hasher,
		stats:  stats,
		router: http.NewServeMux(),
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Handle("/api/auth/register", s.corsMiddleware(s.jsonMiddleware(http.HandlerFunc(s.handleRegister))))
	s.router.Handle("/api/auth/login", s.corsMiddleware(s.jsonMiddleware(http.HandlerFunc(s.handleLogin))))
	s.router.Handle("/api/auth/me", s.corsMiddleware(s.jsonMiddleware(s.authMiddleware(http.HandlerFunc(s.handleMe)))))
	s.router.Handle("/api/courses", s.corsMiddleware(s.jsonMiddleware(s.authMiddleware(http.HandlerFunc(s.handleCourses)))))
	s.router.Handle("/api/courses/", s.corsMiddleware(s.jsonMiddleware(s.authMiddleware(http.HandlerFunc(s.handleCourseByID)))))
	s.router.Handle("/health", s.corsMiddleware(s.jsonMiddleware(http.HandlerFunc(s.healthCheck))))
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Request/Response types for JSON serialization
type RegisterRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Role      string `json:"role"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AuthResponse struct {
	Token string      `json:"token"`
	User  *types.User `json:"user"`
}

type CreateCourseRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

type UpdateCourseRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

type CreateLessonRequest struct {
	Title    string `json:"title"`
	Content  string `json:"content"`
	Position int    `json:"position"`
}

type CreateAssignmentRequest struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	DueDate     *time.Time `json:"due_date"`
}

type CourseResponse struct {
	Course *types.Course `json:"course"`
}

type ListCoursesResponse struct {
	Courses []*types.Course `json:"courses"`
}

type ListLessonsResponse struct {
	Lessons []*types.Lesson `json:"lessons"`
}

type ListAssignmentsResponse struct {
	Assignments []*types.Assignment `json:"assignments"`
}

type HealthResponse struct {
	Status      string    `json:"status"`
	Timestamp   time.Time `json:"timestamp"`
	Database    string    `json:"database"`
	Connections int       `json:"connections"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// POST /api/auth/register
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	role := req.Role
	if role == "" {
		role = types.RoleStudent
	}

	user := &types.User{
		ID:        uuid.New().String(),
		Email:     strings.ToLower(strings.TrimSpace(req.Email)),
		FirstName: strings.TrimSpace(req.FirstName),
		LastName:  strings.TrimSpace(req.LastName),
		Role:      role,
		CreatedAt: time.Now(),
	}

	if err := user.Validate(); err != nil {
		s.sendError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if len(req.Password) < 6 {
		s.sendError(w, types.ErrPasswordTooShort.Error(), http.StatusBadRequest)
		return
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		s.sendError(w, "Failed to process password", http.StatusInternalServerError)
		return
	}
	user.PasswordHash = hash

	if err := s.store.CreateUser(r.Context(), user); err != nil {
		if errors.Is(err, interfaces.ErrDuplicateEmail) {
			s.sendError(w, "Email already registered", http.StatusConflict)
			return
		}
		log.Printf("Failed to create user: %v", err)
		s.sendError(w, "Failed to create user", http.StatusInternalServerError)
		return
	}

	token, err := s.tokens.Issue(user.ID, user.Role)
	if err != nil {
		s.sendError(w, "Failed to issue token", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(AuthResponse{Token: token, User: user})
}

// POST /api/auth/login
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	user, err := s.store.GetUserByEmail(r.Context(), strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		// Same response for unknown email and bad password.
		s.sendError(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}

	if !s.hasher.Verify(req.Password, user.PasswordHash) {
		s.sendError(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}

	token, err := s.tokens.Issue(user.ID, user.Role)
	if err != nil {
		s.sendError(w, "Failed to issue token", http.StatusInternalServerError)
		return
	}

	_ = json.NewEncoder(w).Encode(AuthResponse{Token: token, User: user})
}

// GET /api/auth/me
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	claims := claimsFrom(r)
	user, err := s.store.GetUser(r.Context(), claims.UserID)
	if err != nil {
		s.sendError(w, "User not found", http.StatusNotFound)
		return
	}

	_ = json.NewEncoder(w).Encode(user)
}

// Handle courses collection endpoints (GET /api/courses, POST /api/courses).
func (s *Server) handleCourses(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.listCourses(w, r)
	case http.MethodPost:
		s.createCourse(w, r)
	case http.MethodOptions:
		w.WriteHeader(http.StatusOK)
	default:
		s.sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// Handle per-course endpoints: /api/courses/{id}, /api/courses/{id}/enroll,
// /api/courses/{id}/lessons, /api/courses/{id}/assignments.
func (s *Server) handleCourseByID(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/courses/")
	if path == "" {
		s.sendError(w, "Course ID required", http.StatusBadRequest)
		return
	}

	parts := strings.SplitN(path, "/", 2)
	courseID := parts[0]
	if courseID == "" {
		s.sendError(w, "Invalid course ID", http.StatusBadRequest)
		return
	}

	sub := ""
	if len(parts) == 2 {
		sub = strings.TrimSuffix(parts[1], "/")
	}

	switch sub {
	case "":
		switch r.Method {
		case http.MethodGet:
			s.getCourse(w, r, courseID)
		case http.MethodPut:
			s.updateCourse(w, r, courseID)
		case http.MethodOptions:
			w.WriteHeader(http.StatusOK)
		default:
			s.sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	case "enroll":
		if r.Method != http.MethodPost {
			s.sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		s.enrollStudent(w, r, courseID)
	case "lessons":
		switch r.Method {
		case http.MethodGet:
			s.listLessons(w, r, courseID)
		case http.MethodPost:
			s.createLesson(w, r, courseID)
		default:
			s.sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	case "assignments":
		switch r.Method {
		case http.MethodGet:
			s.listAssignments(w, r, courseID)
		case http.MethodPost:
			s.createAssignment(w, r, courseID)
		default:
			s.sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	default:
		s.sendError(w, "Not found", http.StatusNotFound)
	}
}

// GET /api/courses - courses visible to the caller by role.
func (s *Server) listCourses(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r)

	courses, err := s.store.ListCoursesForUser(r.Context(), claims.UserID, claims.Role)
	if err != nil {
		log.Printf("Failed to list courses: %v", err)
		s.sendError(w, "Failed to list courses", http.StatusInternalServerError)
		return
	}

	if courses == nil {
		courses = []*types.Course{}
	}
	_ = json.NewEncoder(w).Encode(ListCoursesResponse{Courses: courses})
}

// POST /api/courses - teachers and admins only.
func (s *Server) createCourse(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r)
	if claims.Role != types.RoleTeacher && claims.Role != types.RoleAdmin {
		s.sendError(w, "Only teachers can create courses", http.StatusForbidden)
		return
	}

	var req CreateCourseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	now := time.Now()
	course := &types.Course{
		ID:          uuid.New().String(),
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
		Category:    req.Category,
		TeacherID:   claims.UserID,
		StudentIDs:  []string{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := course.Validate(); err != nil {
		s.sendError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := s.store.CreateCourse(r.Context(), course); err != nil {
		log.Printf("Failed to create course: %v", err)
		s.sendError(w, "Failed to create course", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(CourseResponse{Course: course})
}

// GET /api/courses/{id}
func (s *Server) getCourse(w http.ResponseWriter, r *http.Request, courseID string) {
	course, err := s.store.GetCourse(r.Context(), courseID)
	if err != nil {
		if errors.Is(err, interfaces.ErrCourseNotFound) {
			s.sendError(w, "Course not found", http.StatusNotFound)
		} else {
			s.sendError(w, "Failed to get course", http.StatusInternalServerError)
		}
		return
	}

	_ = json.NewEncoder(w).Encode(CourseResponse{Course: course})
}

// PUT /api/courses/{id} - owner teacher or admin.
func (s *Server) updateCourse(w http.ResponseWriter, r *http.Request, courseID string) {
	claims := claimsFrom(r)

	course, err := s.store.GetCourse(r.Context(), courseID)
	if err != nil {
		if errors.Is(err, interfaces.ErrCourseNotFound) {
			s.sendError(w, "Course not found", http.StatusNotFound)
		} else {
			s.sendError(w, "Failed to get course", http.StatusInternalServerError)
		}
		return
	}

	if claims.Role != types.RoleAdmin && course.TeacherID != claims.UserID {
		s.sendError(w, "Not the course owner", http.StatusForbidden)
		return
	}

	var req UpdateCourseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	if req.Title != "" {
		course.Title = strings.TrimSpace(req.Title)
	}
	if req.Description != "" {
		course.Description = req.Description
	}
	if req.Category != "" {
		course.Category = req.Category
	}
	course.UpdatedAt = time.Now()

	if err := course.Validate(); err != nil {
		s.sendError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := s.store.UpdateCourse(r.Context(), course); err != nil {
		log.Printf("Failed to update course: %v", err)
		s.sendError(w, "Failed to update course", http.StatusInternalServerError)
		return
	}

	_ = json.NewEncoder(w).Encode(CourseResponse{Course: course})
}

// POST /api/courses/{id}/enroll - students enroll themselves.
func (s *Server) enrollStudent(w http.ResponseWriter, r *http.Request, courseID string) {
	claims := claimsFrom(r)
	if claims.Role != types.RoleStudent {
		s.sendError(w, "Only students can enroll", http.StatusForbidden)
		return
	}

	if err := s.store.EnrollStudent(r.Context(), courseID, claims.UserID); err != nil {
		switch {
		case errors.Is(err, interfaces.ErrCourseNotFound):
			s.sendError(w, "Course not found", http.StatusNotFound)
		case errors.Is(err, interfaces.ErrAlreadyEnrolled):
			s.sendError(w, "Already enrolled", http.StatusConflict)
		default:
			log.Printf("Failed to enroll student: %v", err)
			s.sendError(w, "Failed to enroll", http.StatusInternalServerError)
		}
		return
	}

	_ = json.NewEncoder(w).Encode(map[string]string{"message": "Enrolled successfully"})
}

// GET /api/courses/{id}/lessons
func (s *Server) listLessons(w http.ResponseWriter, r *http.Request, courseID string) {
	lessons, err := s.store.ListLessons(r.Context(), courseID)
	if err != nil {
		log.Printf("Failed to list lessons: %v", err)
		s.sendError(w, "Failed to list lessons", http.StatusInternalServerError)
		return
	}

	if lessons == nil {
		lessons = []*types.Lesson{}
	}
	_ = json.NewEncoder(w).Encode(ListLessonsResponse{Lessons: lessons})
}

// POST /api/courses/{id}/lessons - owner teacher or admin.
func (s *Server) createLesson(w http.ResponseWriter, r *http.Request, courseID string) {
	claims := claimsFrom(r)
	if !s.canModifyCourse(r.Context(), w, claims, courseID) {
		return
	}

	var req CreateLessonRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	lesson := &types.Lesson{
		ID:        uuid.New().String(),
		CourseID:  courseID,
		Title:     strings.TrimSpace(req.Title),
		Content:   req.Content,
		Position:  req.Position,
		CreatedAt: time.Now(),
	}

	if err := lesson.Validate(); err != nil {
		s.sendError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := s.store.CreateLesson(r.Context(), lesson); err != nil {
		log.Printf("Failed to create lesson: %v", err)
		s.sendError(w, "Failed to create lesson", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(lesson)
}

// GET /api/courses/{id}/assignments
func (s *Server) listAssignments(w http.ResponseWriter, r *http.Request, courseID string) {
	assignments, err := s.store.ListAssignments(r.Context(), courseID)
	if err != nil {
		log.Printf("Failed to list assignments: %v", err)
		s.sendError(w, "Failed to list assignments", http.StatusInternalServerError)
		return
	}

	if assignments == nil {
		assignments = []*types.Assignment{}
	}
	_ = json.NewEncoder(w).Encode(ListAssignmentsResponse{Assignments: assignments})
}

// POST /api/courses/{id}/assignments - owner teacher or admin.
func (s *Server) createAssignment(w http.ResponseWriter, r *http.Request, courseID string) {
	claims := claimsFrom(r)
	if !s.canModifyCourse(r.Context(), w, claims, courseID) {
		return
	}

	var req CreateAssignmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	if strings.TrimSpace(req.Title) == "" {
		s.sendError(w, "Assignment title is required", http.StatusBadRequest)
		return
	}

	assignment := &types.Assignment{
		ID:          uuid.New().String(),
		CourseID:    courseID,
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
		DueDate:     req.DueDate,
		CreatedAt:   time.Now(),
	}

	if err := s.store.CreateAssignment(r.Context(), assignment); err != nil {
		log.Printf("Failed to create assignment: %v", err)
		s.sendError(w, "Failed to create assignment", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(assignment)
}

// canModifyCourse writes the error response itself on failure.
func (s *Server) canModifyCourse(ctx context.Context, w http.ResponseWriter, claims *auth.Claims, courseID string) bool {
	course, err := s.store.GetCourse(ctx, courseID)
	if err != nil {
		if errors.Is(err, interfaces.ErrCourseNotFound) {
			s.sendError(w, "Course not found", http.StatusNotFound)
		} else {
			s.sendError(w, "Failed to get course", http.StatusInternalServerError)
		}
		return false
	}

	if claims.Role != types.RoleAdmin && course.TeacherID != claims.UserID {
		s.sendError(w, "Not the course owner", http.StatusForbidden)
		return false
	}
	return true
}

// GET /health - liveness plus database and connection stats.
func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "healthy"
	dbStatus := "healthy"

	if err := s.store.HealthCheck(ctx); err != nil {
		status = "unhealthy"
		dbStatus = fmt.Sprintf("error: %v", err)
	}

	connections := 0
	if s.stats != nil {
		connections = s.stats.Count()
	}

	response := HealthResponse{
		Status:      status,
		Timestamp:   time.Now(),
		Database:    dbStatus,
		Connections: connections,
	}

	if status == "unhealthy" {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}

	_ = json.NewEncoder(w).Encode(response)
}

func (s *Server) sendError(w http.ResponseWriter, message string, code int) {
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Error:   http.StatusText(code),
		Code:    code,
		Message: message,
	})
}

// authMiddleware verifies the bearer token and stashes the claims in the
// request context.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			s.sendError(w, "Missing bearer token", http.StatusUnauthorized)
			return
		}

		claims, err := s.tokens.Verify(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			if errors.Is(err, auth.ErrExpiredToken) {
				s.sendError(w, "Token expired", http.StatusUnauthorized)
			} else {
				s.sendError(w, "Invalid token", http.StatusUnauthorized)
			}
			return
		}

		ctx := context.WithValue(r.Context(), claimsKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func claimsFrom(r *http.Request) *auth.Claims {
	claims, _ := r.Context().Value(claimsKey).(*auth.Claims)
	return claims
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) jsonMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		next.ServeHTTP(w, r)
	})
}
