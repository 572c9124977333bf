// Package bot is the Telegram companion of the dashboard: employees link
// their account, list and complete their tasks, and receive the morning
// digest plus a notice whenever a recurring task comes back.
package bot

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"
	"unicode"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"
	"github.com/sourcegraph/conc/pool"

	"taskboard/internal/model"
	"taskboard/internal/recurrence"
	"taskboard/internal/service"
)

const (
	cbCompletePrefix = "complete:"
	cbConfirmPrefix  = "confirm:"
	cbCancelPrefix   = "cancel:"
)

const (
	iconRecurring  = "♻️"
	menuLabelTasks = "📋 Tasks"
	menuLabelToday = "📨 Digest"
	menuLabelHelp  = "ℹ️ Help"

	digestWorkers = 4
)

// telegramAPI is the subset of *tgbotapi.BotAPI the bot uses.
type telegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Deps are the services the bot talks to.
type Deps struct {
	Employees *service.EmployeeService
	Tasks     *service.TaskService
	Reminders *service.ReminderService
	Location  *time.Location
	Logger    *slog.Logger
	Now       func() time.Time
}

// Bot aggregates Telegram API with services.
type Bot struct {
	api  telegramAPI
	deps Deps
	mu   sync.Mutex
	// pending completions awaiting confirmation, by Telegram user
	confirmations map[int64]string
	notices       conc.WaitGroup
}

func New(token string, deps Deps) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}
	b := newBot(api, deps)
	b.deps.Logger.Info("bot authorized", "account", api.Self.UserName)
	return b, nil
}

func newBot(api telegramAPI, deps Deps) *Bot {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Location == nil {
		deps.Location = time.Local
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Bot{api: api, deps: deps, confirmations: make(map[int64]string)}
}

// Start begins polling updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := b.api.GetUpdatesChan(updateConfig)

	b.deps.Logger.Info("start polling updates")

	go func() {
		<-ctx.Done()
		b.api.StopReceivingUpdates()
	}()

	for update := range updates {
		if err := b.handleUpdate(ctx, update); err != nil {
			b.deps.Logger.Error("handle update", "update_id", update.UpdateID, "error", err)
		}
	}
	return nil
}

// handleUpdate dispatches one update; a panicking handler is reported as an
// error instead of stopping the polling loop.
func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) error {
	var (
		catcher panics.Catcher
		err     error
	)
	catcher.Try(func() {
		switch {
		case update.CallbackQuery != nil:
			err = b.handleCallback(ctx, update.CallbackQuery)
		case update.Message != nil:
			if update.Message.Chat == nil || !update.Message.Chat.IsPrivate() {
				return
			}
			err = b.handleMessage(ctx, update.Message)
		}
	})
	if err != nil {
		return err
	}
	return catcher.Recovered().AsError()
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) error {
	if msg.From == nil {
		return nil
	}

	if msg.IsCommand() {
		b.deps.Logger.Info("command", "telegram_id", msg.From.ID, "command", msg.Command())
		return b.handleCommand(ctx, msg)
	}

	if handled, err := b.handleMenuAlias(ctx, msg); handled {
		return err
	}

	return b.sendText(msg.Chat.ID, "I did not get that. Try /tasks, /digest or /help.")
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) error {
	switch msg.Command() {
	case "start":
		return b.handleStart(ctx, msg)
	case "help":
		return b.handleHelp(msg)
	case "link":
		return b.handleLink(ctx, msg)
	case "tasks":
		return b.handleListTasks(ctx, msg)
	case "digest":
		return b.handleDigest(ctx, msg)
	default:
		return b.sendText(msg.Chat.ID, "Unknown command. See /help.")
	}
}

func (b *Bot) handleMenuAlias(ctx context.Context, msg *tgbotapi.Message) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(msg.Text)) {
	case strings.ToLower(menuLabelTasks):
		return true, b.handleListTasks(ctx, msg)
	case strings.ToLower(menuLabelToday):
		return true, b.handleDigest(ctx, msg)
	case strings.ToLower(menuLabelHelp):
		return true, b.handleHelp(msg)
	default:
		return false, nil
	}
}

func (b *Bot) handleStart(ctx context.Context, msg *tgbotapi.Message) error {
	employee, err := b.deps.Employees.FindByTelegramID(ctx, msg.From.ID)
	if err == nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("👋 Welcome back, %s!\nUse /tasks to see what is on your plate.", escape(employee.Name)))
	}
	if !service.IsNotFound(err) {
		return err
	}

	name := strings.TrimSpace(msg.From.FirstName)
	if name == "" {
		name = "there"
	}
	text := fmt.Sprintf(
		"👋 Hi, %s!\n<b>I keep the household task board in your pocket.</b>\n\n"+
			"Link your account first:\n"+
			"/link &lt;last 4 digits of your phone&gt; &lt;your name&gt;",
		escape(name),
	)
	return b.sendText(msg.Chat.ID, text)
}

func (b *Bot) handleHelp(msg *tgbotapi.Message) error {
	text := "ℹ️ <b>Commands</b>\n" +
		"• /link &lt;pin&gt; &lt;name&gt; — connect your Telegram account\n" +
		"• /tasks — open tasks with a button to complete each one\n" +
		"• /digest — the morning summary, right now"
	return b.sendText(msg.Chat.ID, text)
}

func (b *Bot) handleLink(ctx context.Context, msg *tgbotapi.Message) error {
	pin, name, ok := parseLinkArgs(msg.CommandArguments())
	if !ok {
		return b.sendText(msg.Chat.ID, "Usage: /link 1234 Your Name")
	}
	employee, err := b.deps.Employees.LinkTelegram(ctx, name, pin, msg.From.ID)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			return b.sendText(msg.Chat.ID, "No active employee matches that name and PIN.")
		}
		return err
	}
	b.deps.Logger.Info("telegram linked", "employee_id", employee.ID, "telegram_id", msg.From.ID)
	return b.sendText(msg.Chat.ID, fmt.Sprintf("✅ Linked to %s. Try /tasks.", escape(employee.Name)))
}

func (b *Bot) handleListTasks(ctx context.Context, msg *tgbotapi.Message) error {
	employee, ok, err := b.linkedEmployee(ctx, msg.Chat.ID, msg.From.ID)
	if !ok {
		return err
	}
	return b.sendTaskList(ctx, msg.Chat.ID, employee)
}

func (b *Bot) handleDigest(ctx context.Context, msg *tgbotapi.Message) error {
	employee, ok, err := b.linkedEmployee(ctx, msg.Chat.ID, msg.From.ID)
	if !ok {
		return err
	}
	text, err := b.deps.Reminders.DailySummary(ctx, *employee, b.today())
	if err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Could not build the digest: %s", escape(err.Error())))
	}
	return b.sendText(msg.Chat.ID, text)
}

// linkedEmployee resolves the employee behind a Telegram account. When ok is
// false the user has already been told what to do, or err is set.
func (b *Bot) linkedEmployee(ctx context.Context, chatID, telegramID int64) (*model.Employee, bool, error) {
	employee, err := b.deps.Employees.FindByTelegramID(ctx, telegramID)
	if err != nil {
		if service.IsNotFound(err) {
			return nil, false, b.sendText(chatID, "Your account is not linked yet. Use /link &lt;pin&gt; &lt;name&gt;.")
		}
		return nil, false, err
	}
	if !employee.Active {
		return nil, false, b.sendText(chatID, "Your account is inactive.")
	}
	return employee, true, nil
}

func (b *Bot) sendTaskList(ctx context.Context, chatID int64, employee *model.Employee) error {
	today := b.today()
	tasks, err := b.deps.Tasks.Upcoming(ctx, principalOf(employee), today, 0)
	if err != nil {
		return b.sendText(chatID, fmt.Sprintf("Could not load tasks: %s", escape(err.Error())))
	}
	if len(tasks) == 0 {
		return b.sendText(chatID, "Nothing due today. 🎉")
	}

	var builder strings.Builder
	builder.WriteString("📋 <b>Due today</b>\n")
	builder.WriteString("Tap a button to mark the task as done.\n\n")

	var buttons [][]tgbotapi.InlineKeyboardButton
	for _, task := range tasks {
		builder.WriteString(formatTask(task, today))
		label := fmt.Sprintf("✅ %s", shortTitle(taskLabel(task), 28))
		buttons = append(buttons, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(label, cbCompletePrefix+task.ID),
		))
	}

	msg := tgbotapi.NewMessage(chatID, strings.TrimSpace(builder.String()))
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(buttons...)
	msg.ParseMode = tgbotapi.ModeHTML
	_, err = b.api.Send(msg)
	return err
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) error {
	if cb == nil || cb.From == nil || cb.Message == nil {
		return nil
	}
	if _, err := b.api.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
		b.deps.Logger.Warn("callback ack", "error", err)
	}

	chatID := cb.Message.Chat.ID
	switch {
	case strings.HasPrefix(cb.Data, cbCompletePrefix):
		return b.askCompleteConfirmation(ctx, chatID, cb.From.ID, strings.TrimPrefix(cb.Data, cbCompletePrefix))
	case strings.HasPrefix(cb.Data, cbConfirmPrefix):
		taskID := strings.TrimPrefix(cb.Data, cbConfirmPrefix)
		if !b.takeConfirmation(cb.From.ID, taskID) {
			return b.sendText(chatID, "That confirmation expired. Open /tasks again.")
		}
		return b.completeTaskAndRefresh(ctx, chatID, cb.From.ID, taskID)
	case strings.HasPrefix(cb.Data, cbCancelPrefix):
		b.clearConfirmation(cb.From.ID)
		return b.sendText(chatID, "↩️ Cancelled.")
	default:
		return nil
	}
}

func (b *Bot) askCompleteConfirmation(ctx context.Context, chatID, telegramID int64, taskID string) error {
	employee, ok, err := b.linkedEmployee(ctx, chatID, telegramID)
	if !ok {
		return err
	}
	task, err := b.deps.Tasks.GetTask(ctx, principalOf(employee), taskID)
	if err != nil {
		return b.replyTaskError(chatID, err)
	}
	if task.Status == model.StatusCompleted {
		return b.sendText(chatID, "This task is already done.")
	}

	b.setConfirmation(telegramID, task.ID)
	text := fmt.Sprintf("Mark «%s» as done?", escape(normalizeTitle(taskLabel(*task))))
	return b.sendWithReplyMarkup(chatID, text, confirmKeyboard(task.ID))
}

func (b *Bot) completeTaskAndRefresh(ctx context.Context, chatID, telegramID int64, taskID string) error {
	employee, ok, err := b.linkedEmployee(ctx, chatID, telegramID)
	if !ok {
		return err
	}
	change, err := b.deps.Tasks.ChangeStatus(ctx, principalOf(employee), taskID, model.StatusCompleted, nil, b.deps.Now())
	if err != nil {
		return b.replyTaskError(chatID, err)
	}

	b.deps.Logger.Info("task completed via telegram", "task_id", change.Task.ID, "employee_id", employee.ID)
	if err := b.sendText(chatID, completionText(change)); err != nil {
		return err
	}
	return b.sendTaskList(ctx, chatID, employee)
}

func (b *Bot) replyTaskError(chatID int64, err error) error {
	switch {
	case service.IsNotFound(err):
		return b.sendText(chatID, "Task not found or already removed.")
	case errors.Is(err, service.ErrForbidden):
		return b.sendText(chatID, "This task is not assigned to you.")
	default:
		return err
	}
}

// SendDailyDigests sends the morning summary to every linked employee.
func (b *Bot) SendDailyDigests(ctx context.Context) error {
	employees, err := b.deps.Employees.Linked(ctx)
	if err != nil {
		return err
	}
	today := b.today()

	p := pool.New().WithContext(ctx).WithMaxGoroutines(digestWorkers)
	for _, employee := range employees {
		p.Go(func(ctx context.Context) error {
			text, err := b.deps.Reminders.DailySummary(ctx, employee, today)
			if err != nil {
				return fmt.Errorf("build digest for %s: %w", employee.ID, err)
			}
			if err := b.sendText(*employee.TelegramID, text); err != nil {
				return fmt.Errorf("send digest to %s: %w", employee.ID, err)
			}
			return nil
		})
	}
	err = p.Wait()
	b.deps.Logger.Info("daily digests sent", "employees", len(employees), "error", err)
	return err
}

// TaskRecreated tells the linked assignees of next that the task is back.
// Notices go out in the background so the completion that triggered them
// does not wait on Telegram; Wait drains them.
func (b *Bot) TaskRecreated(ctx context.Context, _, next *model.Task) {
	ctx = context.WithoutCancel(ctx)
	task := *next
	task.AssigneeIDs = slices.Clone(next.AssigneeIDs)
	b.notices.Go(func() {
		b.sendRecreationNotices(ctx, &task)
	})
}

func (b *Bot) sendRecreationNotices(ctx context.Context, next *model.Task) {
	recipients, err := b.recipients(ctx, next)
	if err != nil {
		b.deps.Logger.Warn("resolve recreation recipients", "task_id", next.ID, "error", err)
		return
	}
	text := recreatedText(next)
	p := pool.New().WithMaxGoroutines(digestWorkers)
	for _, employee := range recipients {
		p.Go(func() {
			if err := b.sendText(*employee.TelegramID, text); err != nil {
				b.deps.Logger.Warn("send recreation notice", "task_id", next.ID, "employee_id", employee.ID, "error", err)
			}
		})
	}
	p.Wait()
}

// Wait blocks until every queued recreation notice was sent. A panic in a
// sender is logged, not propagated.
func (b *Bot) Wait() {
	if r := b.notices.WaitAndRecover(); r != nil {
		b.deps.Logger.Error("recreation notice panicked", "error", r.AsError())
	}
}

func (b *Bot) recipients(ctx context.Context, task *model.Task) ([]model.Employee, error) {
	if task.IsShared {
		return b.deps.Employees.Linked(ctx)
	}
	ids := slices.Clone(task.AssigneeIDs)
	if task.AssignedTo != nil && !slices.Contains(ids, *task.AssignedTo) {
		ids = append(ids, *task.AssignedTo)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	employees, err := b.deps.Employees.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	return slices.DeleteFunc(employees, func(e model.Employee) bool {
		return !e.Active || e.TelegramID == nil
	}), nil
}

func (b *Bot) today() time.Time {
	return recurrence.DateOf(b.deps.Now().In(b.deps.Location))
}

func (b *Bot) sendText(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = mainMenuKeyboard()
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) sendWithReplyMarkup(chatID int64, text string, markup interface{}) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = markup
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) setConfirmation(telegramID int64, taskID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.confirmations[telegramID] = taskID
}

// takeConfirmation consumes the pending confirmation if it is for taskID.
func (b *Bot) takeConfirmation(telegramID int64, taskID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.confirmations[telegramID] != taskID {
		return false
	}
	delete(b.confirmations, telegramID)
	return true
}

func (b *Bot) clearConfirmation(telegramID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.confirmations, telegramID)
}

func principalOf(e *model.Employee) service.Principal {
	return service.Principal{Role: service.RoleEmployee, EmployeeID: e.ID, Name: e.Name}
}

// parseLinkArgs splits "/link 1234 Maria da Silva" arguments.
func parseLinkArgs(args string) (pin, name string, ok bool) {
	fields := strings.Fields(args)
	if len(fields) < 2 {
		return "", "", false
	}
	return fields[0], strings.Join(fields[1:], " "), true
}

func completionText(change *service.StatusChange) string {
	title := escape(normalizeTitle(taskLabel(*change.Task)))
	switch {
	case change.RecurrenceErr != nil:
		return fmt.Sprintf("✅ «%s» done.\n⚠️ The next occurrence could not be scheduled, please tell the admin.", title)
	case change.Next != nil:
		return fmt.Sprintf("✅ «%s» done.\n%s Next one on %s.", title, iconRecurring, change.Next.DueDate)
	default:
		return fmt.Sprintf("✅ «%s» done.", title)
	}
}

func recreatedText(task *model.Task) string {
	text := fmt.Sprintf("%s «%s» is scheduled again for %s.", iconRecurring, escape(normalizeTitle(taskLabel(*task))), task.DueDate)
	if rule, err := recurrence.FromFields(task.RecurrenceType, task.RecurrenceDay, task.RecurrenceDays); err == nil {
		text += fmt.Sprintf("\n<i>Repeats %s.</i>", rule.Describe())
	}
	return text
}

func formatTask(task model.Task, today time.Time) string {
	var b strings.Builder
	icon := "🟢"
	if task.DueDate < recurrence.FormatDate(today) {
		icon = "⚠️"
	}
	b.WriteString(fmt.Sprintf("%s <b>%s</b>\n", icon, escape(normalizeTitle(taskLabel(task)))))
	b.WriteString(fmt.Sprintf("   ⏰ %s", task.DueDate))
	if task.IsRecurring() {
		b.WriteString(" · " + iconRecurring)
	}
	b.WriteByte('\n')
	if task.Title != "" && task.Description != "" {
		b.WriteString(fmt.Sprintf("   📝 %s\n", escape(task.Description)))
	}
	b.WriteByte('\n')
	return b.String()
}

func taskLabel(task model.Task) string {
	if title := strings.TrimSpace(task.Title); title != "" {
		return title
	}
	return strings.TrimSpace(task.Description)
}

func shortTitle(title string, maxLen int) string {
	clean := strings.TrimSpace(strings.ReplaceAll(title, "\n", " "))
	clean = normalizeTitle(clean)
	runes := []rune(clean)
	if len(runes) <= maxLen {
		return clean
	}
	if maxLen <= 1 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-1]) + "…"
}

func normalizeTitle(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return value
	}
	runes := []rune(value)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

func escape(s string) string {
	return html.EscapeString(s)
}

func confirmKeyboard(taskID string) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Confirm", cbConfirmPrefix+taskID),
			tgbotapi.NewInlineKeyboardButtonData("↩️ Cancel", cbCancelPrefix+taskID),
		),
	)
}

func mainMenuKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuLabelTasks),
			tgbotapi.NewKeyboardButton(menuLabelToday),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuLabelHelp),
		),
	)
	kb.ResizeKeyboard = true
	return kb
}
