package service

import (
	"context"
	"strings"

	"taskboard/internal/model"
	"taskboard/internal/recurrence"
	"taskboard/internal/repository"
)

// EmployeeInput represents the editable fields of an employee.
type EmployeeInput struct {
	Name          string
	Role          string
	Phone         string
	Address       string
	AdmissionDate string
	PhotoURL      string
	BankDetails   model.BankDetails
	Documents     model.Documents
	Active        *bool
}

// RosterEntry is the public view of an employee shown on the login screen.
type RosterEntry struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	PhotoURL string `json:"photo_url,omitempty"`
}

// EmployeeService manages the staff roster.
type EmployeeService struct {
	repo *repository.EmployeeRepository
}

func NewEmployeeService(repo *repository.EmployeeRepository) *EmployeeService {
	return &EmployeeService{repo: repo}
}

func (s *EmployeeService) Create(ctx context.Context, p Principal, input EmployeeInput) (*model.Employee, error) {
	if !p.IsAdmin() {
		return nil, ErrForbidden
	}
	employee := model.Employee{Active: true}
	if err := applyEmployee(&employee, input); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, &employee); err != nil {
		return nil, err
	}
	return &employee, nil
}

func (s *EmployeeService) Update(ctx context.Context, p Principal, id string, input EmployeeInput) (*model.Employee, error) {
	if !p.IsAdmin() {
		return nil, ErrForbidden
	}
	employee, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := applyEmployee(employee, input); err != nil {
		return nil, err
	}
	if err := s.repo.Save(ctx, employee); err != nil {
		return nil, err
	}
	return employee, nil
}

func (s *EmployeeService) Delete(ctx context.Context, p Principal, id string) error {
	if !p.IsAdmin() {
		return ErrForbidden
	}
	return s.repo.Delete(ctx, id)
}

func (s *EmployeeService) Get(ctx context.Context, p Principal, id string) (*model.Employee, error) {
	if !p.IsAdmin() && p.EmployeeID != id {
		return nil, ErrForbidden
	}
	return s.repo.FindByID(ctx, id)
}

func (s *EmployeeService) List(ctx context.Context, p Principal) ([]model.Employee, error) {
	if !p.IsAdmin() {
		return nil, ErrForbidden
	}
	return s.repo.List(ctx, false)
}

// Roster lists active employees for the login picker.
func (s *EmployeeService) Roster(ctx context.Context) ([]RosterEntry, error) {
	employees, err := s.repo.List(ctx, true)
	if err != nil {
		return nil, err
	}
	roster := make([]RosterEntry, 0, len(employees))
	for _, e := range employees {
		roster = append(roster, RosterEntry{ID: e.ID, Name: e.Name, PhotoURL: e.PhotoURL})
	}
	return roster, nil
}

// LinkTelegram attaches a Telegram account to the active employee named
// name whose phone ends with password.
func (s *EmployeeService) LinkTelegram(ctx context.Context, name, password string, telegramID int64) (*model.Employee, error) {
	employees, err := s.repo.List(ctx, true)
	if err != nil {
		return nil, err
	}
	for i := range employees {
		e := &employees[i]
		if !strings.EqualFold(strings.TrimSpace(e.Name), strings.TrimSpace(name)) {
			continue
		}
		if err := CheckPhonePassword(e, password); err != nil {
			continue
		}
		if err := s.repo.SetTelegramID(ctx, e.ID, telegramID); err != nil {
			return nil, err
		}
		e.TelegramID = &telegramID
		return e, nil
	}
	return nil, ErrInvalidCredentials
}

func (s *EmployeeService) FindByTelegramID(ctx context.Context, telegramID int64) (*model.Employee, error) {
	return s.repo.FindByTelegramID(ctx, telegramID)
}

func (s *EmployeeService) FindByIDs(ctx context.Context, ids []string) ([]model.Employee, error) {
	return s.repo.FindByIDs(ctx, ids)
}

// Linked lists active employees reachable through Telegram.
func (s *EmployeeService) Linked(ctx context.Context) ([]model.Employee, error) {
	employees, err := s.repo.List(ctx, true)
	if err != nil {
		return nil, err
	}
	linked := employees[:0]
	for _, e := range employees {
		if e.TelegramID != nil {
			linked = append(linked, e)
		}
	}
	return linked, nil
}

func applyEmployee(e *model.Employee, input EmployeeInput) error {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return invalid("name is required")
	}
	admission := strings.TrimSpace(input.AdmissionDate)
	if admission != "" {
		d, err := recurrence.ParseDate(admission)
		if err != nil {
			return invalid("admission date: %v", err)
		}
		admission = recurrence.FormatDate(d)
	}
	e.Name = name
	e.Role = strings.TrimSpace(input.Role)
	e.Phone = strings.TrimSpace(input.Phone)
	e.Address = strings.TrimSpace(input.Address)
	e.AdmissionDate = admission
	e.PhotoURL = strings.TrimSpace(input.PhotoURL)
	e.BankDetails = model.BankDetails{
		Bank:    strings.TrimSpace(input.BankDetails.Bank),
		Agency:  strings.TrimSpace(input.BankDetails.Agency),
		Account: strings.TrimSpace(input.BankDetails.Account),
		Pix:     strings.TrimSpace(input.BankDetails.Pix),
	}
	e.Documents = model.Documents{
		CPF: strings.TrimSpace(input.Documents.CPF),
		RG:  strings.TrimSpace(input.Documents.RG),
	}
	if input.Active != nil {
		e.Active = *input.Active
	}
	return nil
}
