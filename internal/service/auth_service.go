package service

import (
	"context"
	"crypto/subtle"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/google/uuid"

	"taskboard/internal/model"
)

// Role is the kind of dashboard session.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleEmployee Role = "employee"
	// RoleKiosk is the shared wall panel: it sees everything and changes nothing.
	RoleKiosk Role = "kiosk"
)

// Principal identifies who performs an operation.
type Principal struct {
	Role       Role   `json:"role"`
	EmployeeID string `json:"employee_id,omitempty"`
	Name       string `json:"name"`
}

func (p Principal) IsAdmin() bool { return p.Role == RoleAdmin }

// System is used for jobs that run without a user session.
var System = Principal{Role: RoleAdmin, Name: "system"}

type employeeFinder interface {
	FindByID(ctx context.Context, id string) (*model.Employee, error)
}

// AuthService checks dashboard credentials and issues sessions.
type AuthService struct {
	adminPassword   string
	adminEmployeeID string
	employees       employeeFinder
	sessions        *SessionStore
}

func NewAuthService(adminPassword, adminEmployeeID string, employees employeeFinder, sessions *SessionStore) *AuthService {
	return &AuthService{
		adminPassword:   adminPassword,
		adminEmployeeID: adminEmployeeID,
		employees:       employees,
		sessions:        sessions,
	}
}

func (s *AuthService) LoginAdmin(password string, now time.Time) (string, Principal, error) {
	if s.adminPassword == "" || subtle.ConstantTimeCompare([]byte(password), []byte(s.adminPassword)) != 1 {
		return "", Principal{}, ErrInvalidCredentials
	}
	p := Principal{Role: RoleAdmin, EmployeeID: s.adminEmployeeID, Name: "Administrator"}
	return s.sessions.Issue(p, now), p, nil
}

// LoginEmployee authenticates an active employee with the last four digits
// of their phone number.
func (s *AuthService) LoginEmployee(ctx context.Context, employeeID, password string, now time.Time) (string, Principal, error) {
	employee, err := s.employees.FindByID(ctx, employeeID)
	if err != nil {
		return "", Principal{}, ErrInvalidCredentials
	}
	if !employee.Active {
		return "", Principal{}, ErrInvalidCredentials
	}
	if err := CheckPhonePassword(employee, password); err != nil {
		return "", Principal{}, err
	}
	p := Principal{Role: RoleEmployee, EmployeeID: employee.ID, Name: employee.Name}
	return s.sessions.Issue(p, now), p, nil
}

func (s *AuthService) LoginKiosk(now time.Time) (string, Principal) {
	p := Principal{Role: RoleKiosk, Name: "Kiosk"}
	return s.sessions.Issue(p, now), p
}

func (s *AuthService) Authenticate(token string, now time.Time) (Principal, bool) {
	return s.sessions.Lookup(token, now)
}

func (s *AuthService) Logout(token string) {
	s.sessions.Revoke(token)
}

// CheckPhonePassword compares password with the last four digits of the
// employee's phone, ignoring formatting characters.
func CheckPhonePassword(employee *model.Employee, password string) error {
	digits := strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, employee.Phone)
	if len(digits) < 4 {
		return ErrNoPhone
	}
	last4 := digits[len(digits)-4:]
	if subtle.ConstantTimeCompare([]byte(strings.TrimSpace(password)), []byte(last4)) != 1 {
		return ErrInvalidCredentials
	}
	return nil
}

type session struct {
	principal Principal
	expires   time.Time
}

// SessionStore keeps dashboard sessions in memory.
type SessionStore struct {
	ttl   time.Duration
	mu    sync.Mutex
	items map[string]session
}

func NewSessionStore(ttl time.Duration) *SessionStore {
	return &SessionStore{ttl: ttl, items: make(map[string]session)}
}

func (s *SessionStore) Issue(p Principal, now time.Time) string {
	token := uuid.NewString()
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range s.items {
		if !now.Before(v.expires) {
			delete(s.items, k)
		}
	}
	s.items[token] = session{principal: p, expires: now.Add(s.ttl)}
	return token
}

func (s *SessionStore) Lookup(token string, now time.Time) (Principal, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.items[token]
	if !ok {
		return Principal{}, false
	}
	if !now.Before(v.expires) {
		delete(s.items, token)
		return Principal{}, false
	}
	return v.principal, true
}

func (s *SessionStore) Revoke(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, token)
}
