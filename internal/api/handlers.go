package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"taskboard/internal/model"
	"taskboard/internal/recurrence"
	"taskboard/internal/repository"
	"taskboard/internal/service"
)

type proofJSON struct {
	PhotoURL    string     `json:"photo_url,omitempty"`
	AudioURL    string     `json:"audio_url,omitempty"`
	Comment     string     `json:"comment,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

type taskJSON struct {
	ID             string           `json:"id"`
	Title          string           `json:"title"`
	Description    string           `json:"description"`
	AssignedTo     *string          `json:"assigned_to,omitempty"`
	AssigneeIDs    []string         `json:"assignee_ids,omitempty"`
	GroupID        *uint            `json:"group_id,omitempty"`
	IsShared       bool             `json:"is_shared"`
	Type           model.TaskType   `json:"type"`
	DueDate        string           `json:"due_date"`
	Status         model.TaskStatus `json:"status"`
	RecurrenceType string           `json:"recurrence_type"`
	RecurrenceDay  *int             `json:"recurrence_day,omitempty"`
	RecurrenceDays []int            `json:"recurrence_days,omitempty"`
	Response       string           `json:"response,omitempty"`
	Proof          *proofJSON       `json:"proof,omitempty"`
	CreatedBy      *string          `json:"created_by,omitempty"`
	CreatorName    string           `json:"creator_name,omitempty"`
	OriginTaskID   *string          `json:"origin_task_id,omitempty"`
	NextTaskID     *string          `json:"next_task_id,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
}

func toTaskJSON(t *model.Task) *taskJSON {
	if t == nil {
		return nil
	}
	out := &taskJSON{
		ID:             t.ID,
		Title:          t.Title,
		Description:    t.Description,
		AssignedTo:     t.AssignedTo,
		AssigneeIDs:    t.AssigneeIDs,
		GroupID:        t.GroupID,
		IsShared:       t.IsShared,
		Type:           t.Type,
		DueDate:        t.DueDate,
		Status:         t.Status,
		RecurrenceType: t.RecurrenceType,
		RecurrenceDay:  t.RecurrenceDay,
		RecurrenceDays: t.RecurrenceDays,
		Response:       t.Response,
		CreatedBy:      t.CreatedBy,
		CreatorName:    t.CreatorName,
		OriginTaskID:   t.OriginTaskID,
		NextTaskID:     t.NextTaskID,
		CreatedAt:      t.CreatedAt,
	}
	if !t.Proof.Empty() {
		out.Proof = &proofJSON{
			PhotoURL:    t.Proof.PhotoURL,
			AudioURL:    t.Proof.AudioURL,
			Comment:     t.Proof.Comment,
			CompletedAt: t.Proof.CompletedAt,
		}
	}
	return out
}

func toTaskList(tasks []model.Task) []*taskJSON {
	out := make([]*taskJSON, 0, len(tasks))
	for i := range tasks {
		out = append(out, toTaskJSON(&tasks[i]))
	}
	return out
}

type taskRequest struct {
	Title          string         `json:"title"`
	Description    string         `json:"description"`
	AssignedTo     *string        `json:"assigned_to"`
	AssigneeIDs    []string       `json:"assignee_ids"`
	IsShared       bool           `json:"is_shared"`
	GroupID        *uint          `json:"group_id"`
	Type           model.TaskType `json:"type"`
	DueDate        string         `json:"due_date"`
	RecurrenceType string         `json:"recurrence_type"`
	RecurrenceDay  *int           `json:"recurrence_day"`
	RecurrenceDays []int          `json:"recurrence_days"`
}

func (req taskRequest) input() service.TaskInput {
	return service.TaskInput{
		Title:          req.Title,
		Description:    req.Description,
		AssignedTo:     req.AssignedTo,
		AssigneeIDs:    req.AssigneeIDs,
		IsShared:       req.IsShared,
		GroupID:        req.GroupID,
		Type:           req.Type,
		DueDate:        req.DueDate,
		RecurrenceType: req.RecurrenceType,
		RecurrenceDay:  req.RecurrenceDay,
		RecurrenceDays: req.RecurrenceDays,
	}
}

type statusRequest struct {
	Status model.TaskStatus `json:"status"`
	Proof  *proofJSON       `json:"proof"`
}

type statusResponse struct {
	Task            *taskJSON `json:"task"`
	NextTask        *taskJSON `json:"next_task,omitempty"`
	RecurrenceError string    `json:"recurrence_error,omitempty"`
}

type loginResponse struct {
	Token     string            `json:"token"`
	Principal service.Principal `json:"principal"`
}

func (s *Server) loginAdmin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Password string `json:"password"`
	}
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	token, p, err := s.deps.Auth.LoginAdmin(req.Password, s.deps.Now())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{Token: token, Principal: p})
}

func (s *Server) loginEmployee(w http.ResponseWriter, r *http.Request) {
	var req struct {
		EmployeeID string `json:"employee_id"`
		Password   string `json:"password"`
	}
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	token, p, err := s.deps.Auth.LoginEmployee(r.Context(), req.EmployeeID, req.Password, s.deps.Now())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{Token: token, Principal: p})
}

func (s *Server) loginKiosk(w http.ResponseWriter, _ *http.Request) {
	token, p := s.deps.Auth.LoginKiosk(s.deps.Now())
	writeJSON(w, http.StatusOK, loginResponse{Token: token, Principal: p})
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	s.deps.Auth.Logout(sessionToken(r))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) me(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, principalFrom(r.Context()))
}

func (s *Server) roster(w http.ResponseWriter, r *http.Request) {
	roster, err := s.deps.Employees.Roster(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, roster)
}

func (s *Server) today() time.Time {
	return recurrence.DateOf(s.deps.Now().In(s.deps.Location))
}

func (s *Server) dashboard(w http.ResponseWriter, r *http.Request) {
	days := s.deps.LookAheadDays
	if raw := r.URL.Query().Get("days"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_argument", "days must be a number")
			return
		}
		days = v
	}
	today := s.today()
	tasks, err := s.deps.Tasks.Upcoming(r.Context(), principalFrom(r.Context()), today, days)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"today": recurrence.FormatDate(today),
		"days":  days,
		"tasks": toTaskList(tasks),
	})
}

// previewNextDate lets the task form show when a rule fires next.
func (s *Server) previewNextDate(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var day *int
	if raw := q.Get("day"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_argument", "day must be a number")
			return
		}
		day = &v
	}
	var days []int
	if raw := q.Get("days"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			v, err := strconv.Atoi(strings.TrimSpace(part))
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_argument", "days must be a comma separated list of weekdays")
				return
			}
			days = append(days, v)
		}
	}
	date := q.Get("date")
	if date == "" {
		date = recurrence.FormatDate(s.today())
	}

	rule, err := recurrence.FromFields(q.Get("type"), day, days)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	next, ok, err := recurrence.NextDate(date, q.Get("type"), day, days)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"recurs":      ok,
		"next_date":   next,
		"description": rule.Describe(),
	})
}

func (s *Server) listTasks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := repository.TaskFilter{
		Status:     model.TaskStatus(q.Get("status")),
		EmployeeID: q.Get("assignee"),
		DueFrom:    q.Get("from"),
		DueTo:      q.Get("to"),
		OpenOnly:   q.Get("open") == "true",
	}
	if raw := q.Get("group"); raw != "" {
		v, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_argument", "group must be a number")
			return
		}
		id := uint(v)
		filter.GroupID = &id
	}
	tasks, err := s.deps.Tasks.ListTasks(r.Context(), principalFrom(r.Context()), filter)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTaskList(tasks))
}

func (s *Server) createTask(w http.ResponseWriter, r *http.Request) {
	var req taskRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	task, err := s.deps.Tasks.CreateTask(r.Context(), principalFrom(r.Context()), req.input())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTaskJSON(task))
}

func (s *Server) getTask(w http.ResponseWriter, r *http.Request) {
	task, err := s.deps.Tasks.GetTask(r.Context(), principalFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTaskJSON(task))
}

func (s *Server) updateTask(w http.ResponseWriter, r *http.Request) {
	var req taskRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	task, err := s.deps.Tasks.UpdateTask(r.Context(), principalFrom(r.Context()), chi.URLParam(r, "id"), req.input())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTaskJSON(task))
}

func (s *Server) deleteTask(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Tasks.DeleteTask(r.Context(), principalFrom(r.Context()), chi.URLParam(r, "id")); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) changeStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	var proof *model.Proof
	if req.Proof != nil {
		proof = &model.Proof{
			PhotoURL: req.Proof.PhotoURL,
			AudioURL: req.Proof.AudioURL,
			Comment:  req.Proof.Comment,
		}
	}
	change, err := s.deps.Tasks.ChangeStatus(r.Context(), principalFrom(r.Context()), chi.URLParam(r, "id"), req.Status, proof, s.deps.Now())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	resp := statusResponse{Task: toTaskJSON(change.Task), NextTask: toTaskJSON(change.Next)}
	if change.RecurrenceErr != nil {
		resp.RecurrenceError = change.RecurrenceErr.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) respond(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Response string `json:"response"`
	}
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	task, err := s.deps.Tasks.Respond(r.Context(), principalFrom(r.Context()), chi.URLParam(r, "id"), req.Response)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTaskJSON(task))
}

type employeeRequest struct {
	Name          string            `json:"name"`
	Role          string            `json:"role"`
	Phone         string            `json:"phone"`
	Address       string            `json:"address"`
	AdmissionDate string            `json:"admission_date"`
	PhotoURL      string            `json:"photo_url"`
	BankDetails   model.BankDetails `json:"bank_details"`
	Documents     model.Documents   `json:"documents"`
	Active        *bool             `json:"active"`
}

func (req employeeRequest) input() service.EmployeeInput {
	return service.EmployeeInput(req)
}

type employeeJSON struct {
	ID             string             `json:"id"`
	Name           string             `json:"name"`
	Role           string             `json:"role,omitempty"`
	Phone          string             `json:"phone,omitempty"`
	Address        string             `json:"address,omitempty"`
	AdmissionDate  string             `json:"admission_date,omitempty"`
	PhotoURL       string             `json:"photo_url,omitempty"`
	BankDetails    *model.BankDetails `json:"bank_details,omitempty"`
	Documents      *model.Documents   `json:"documents,omitempty"`
	Active         bool               `json:"active"`
	TelegramLinked bool               `json:"telegram_linked"`
}

// toEmployeeJSON renders an employee. Bank details and documents are only
// shown to admins.
func toEmployeeJSON(e *model.Employee, p service.Principal) employeeJSON {
	out := employeeJSON{
		ID:             e.ID,
		Name:           e.Name,
		Role:           e.Role,
		Phone:          e.Phone,
		Address:        e.Address,
		AdmissionDate:  e.AdmissionDate,
		PhotoURL:       e.PhotoURL,
		Active:         e.Active,
		TelegramLinked: e.TelegramID != nil,
	}
	if p.IsAdmin() {
		bank, docs := e.BankDetails, e.Documents
		out.BankDetails, out.Documents = &bank, &docs
	}
	return out
}

func (s *Server) listEmployees(w http.ResponseWriter, r *http.Request) {
	p := principalFrom(r.Context())
	employees, err := s.deps.Employees.List(r.Context(), p)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	out := make([]employeeJSON, 0, len(employees))
	for i := range employees {
		out = append(out, toEmployeeJSON(&employees[i], p))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) createEmployee(w http.ResponseWriter, r *http.Request) {
	var req employeeRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	employee, err := s.deps.Employees.Create(r.Context(), principalFrom(r.Context()), req.input())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toEmployeeJSON(employee, principalFrom(r.Context())))
}

func (s *Server) getEmployee(w http.ResponseWriter, r *http.Request) {
	employee, err := s.deps.Employees.Get(r.Context(), principalFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toEmployeeJSON(employee, principalFrom(r.Context())))
}

func (s *Server) updateEmployee(w http.ResponseWriter, r *http.Request) {
	var req employeeRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	employee, err := s.deps.Employees.Update(r.Context(), principalFrom(r.Context()), chi.URLParam(r, "id"), req.input())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toEmployeeJSON(employee, principalFrom(r.Context())))
}

func (s *Server) deleteEmployee(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Employees.Delete(r.Context(), principalFrom(r.Context()), chi.URLParam(r, "id")); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := s.deps.Groups.List(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, groups)
}

func (s *Server) createGroup(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name  string `json:"name"`
		Color string `json:"color"`
		Icon  string `json:"icon"`
	}
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	group, err := s.deps.Groups.Ensure(r.Context(), principalFrom(r.Context()), req.Name, req.Color, req.Icon)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, group)
}

func groupIDParam(w http.ResponseWriter, r *http.Request) (uint, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id == 0 {
		writeError(w, http.StatusBadRequest, "invalid_argument", "group id must be a positive number")
		return 0, false
	}
	return uint(id), true
}

func (s *Server) writeMembers(w http.ResponseWriter, r *http.Request, members []model.Employee) {
	p := principalFrom(r.Context())
	out := make([]employeeJSON, 0, len(members))
	for i := range members {
		out = append(out, toEmployeeJSON(&members[i], p))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) groupMembers(w http.ResponseWriter, r *http.Request) {
	id, ok := groupIDParam(w, r)
	if !ok {
		return
	}
	members, err := s.deps.Groups.Members(r.Context(), principalFrom(r.Context()), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeMembers(w, r, members)
}

func (s *Server) setGroupMembers(w http.ResponseWriter, r *http.Request) {
	id, ok := groupIDParam(w, r)
	if !ok {
		return
	}
	var req struct {
		EmployeeIDs []string `json:"employee_ids"`
	}
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	members, err := s.deps.Groups.SetMembers(r.Context(), principalFrom(r.Context()), id, req.EmployeeIDs)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeMembers(w, r, members)
}
