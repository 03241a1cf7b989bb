package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/example/lingobot/internal/session"
	"github.com/example/lingobot/pkg/models"
)

// examState tracks an in-flight lesson certification round for one chat.
type examState struct {
	lessonID string
	round    int
	entities []models.Entity
	idx      int
	correct  int
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.Message != nil && update.Message.IsCommand():
		b.handleCommand(ctx, update.Message)
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, update.CallbackQuery)
	}
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	userID := msg.From.ID

	switch msg.Command() {
	case "start":
		b.handleStart(ctx, msg)
	case "today":
		b.handleToday(ctx, userID, msg.CommandArguments())
	case "progress":
		b.handleProgress(ctx, userID)
	case "exam":
		b.handleExam(ctx, userID, msg.CommandArguments())
	case "stop":
		b.handleStopSession(ctx, userID)
	case "remind":
		b.handleRemind(ctx, userID)
	case "notify":
		b.handleNotify(ctx, userID, msg.CommandArguments())
	default:
		b.send(userID, "Commands: /today [letter|word|sentence], /exam <lesson>, /progress, /remind, /notify on|off, /stop")
	}
}

func (b *Bot) handleStart(ctx context.Context, msg *tgbotapi.Message) {
	user := &models.User{
		ID:                  msg.From.ID,
		Username:            msg.From.UserName,
		FirstName:           msg.From.FirstName,
		LastName:            msg.From.LastName,
		NotificationEnabled: true,
	}
	if err := b.users.CreateOrUpdate(ctx, user); err != nil {
		b.log.Error("failed to register user", zap.Int64("user_id", user.ID), zap.Error(err))
		b.send(user.ID, "Something went wrong, please try again.")
		return
	}

	b.send(user.ID, "Welcome! Send /today to begin your daily session.")
}

func (b *Bot) handleToday(ctx context.Context, userID int64, args string) {
	entityType := models.EntityLetter
	if args != "" {
		entityType = models.EntityType(strings.TrimSpace(args))
	}

	sess, err := b.manager.FetchTodaySession(ctx, userID, entityType, 0, true)
	if err != nil {
		var locked *session.ModuleLockedError
		if errors.As(err, &locked) {
			b.send(userID, fmt.Sprintf("Not yet! %s Keep going, you're at %.0f%%.",
				locked.Decision.Reason, locked.Decision.Progress*100))
			return
		}
		b.log.Error("failed to build session", zap.Int64("user_id", userID), zap.Error(err))
		b.send(userID, "Could not build your session, please try again.")
		return
	}

	if sess.Queue.Done() {
		b.send(userID, "Nothing due today and no new material. Come back tomorrow!")
		return
	}

	b.sessions[userID] = sess
	b.send(userID, fmt.Sprintf("Today: %d to review, %d new.",
		sess.Summary.ReviewCount, sess.Summary.NewCount))
	b.presentCurrent(ctx, userID)
}

func (b *Bot) handleProgress(ctx context.Context, userID int64) {
	stats, err := b.records.GetUserStats(ctx, userID, time.Now())
	if err != nil {
		b.log.Error("failed to get stats", zap.Int64("user_id", userID), zap.Error(err))
		b.send(userID, "Could not load your progress.")
		return
	}

	skipped, err := b.skips.CountForUser(ctx, userID)
	if err != nil {
		b.log.Debug("failed to count skips", zap.Int64("user_id", userID), zap.Error(err))
	}

	b.send(userID, fmt.Sprintf(
		"Tracked: %d\nDue today: %d\nMastered: %d\nCorrect: %d, wrong: %d\nSkipped: %d",
		stats.TotalTracked, stats.DueToday, stats.Mastered,
		stats.TotalCorrect, stats.TotalWrong, skipped))
}

func (b *Bot) handleRemind(ctx context.Context, userID int64) {
	dueCount, err := b.records.CountDue(ctx, userID, time.Now())
	if err != nil {
		b.log.Error("failed to count due records", zap.Int64("user_id", userID), zap.Error(err))
		b.send(userID, "Could not check your reviews.")
		return
	}

	if dueCount == 0 {
		b.send(userID, "Nothing due right now. Well done!")
		return
	}
	if err := b.SendReminder(userID, dueCount); err != nil {
		b.log.Error("failed to send reminder", zap.Int64("user_id", userID), zap.Error(err))
	}
}

func (b *Bot) handleNotify(ctx context.Context, userID int64, args string) {
	switch strings.TrimSpace(args) {
	case "on":
		if err := b.users.SetNotifications(ctx, userID, true); err != nil {
			b.send(userID, "Could not update your settings.")
			return
		}
		b.send(userID, "Daily reminders are on.")
	case "off":
		if err := b.users.SetNotifications(ctx, userID, false); err != nil {
			b.send(userID, "Could not update your settings.")
			return
		}
		b.send(userID, "Daily reminders are off.")
	default:
		b.send(userID, "Usage: /notify on|off")
	}
}

func (b *Bot) handleStopSession(ctx context.Context, userID int64) {
	sess, ok := b.sessions[userID]
	if !ok {
		b.send(userID, "No active session.")
		return
	}

	sess.Abandon(ctx)
	delete(b.sessions, userID)
	b.send(userID, "Session saved. Your progress so far has been recorded.")
}

// presentCurrent renders the queue's current item, or closes the session
// when the queue is exhausted.
func (b *Bot) presentCurrent(ctx context.Context, userID int64) {
	sess, ok := b.sessions[userID]
	if !ok {
		return
	}

	if sess.Queue.Done() {
		sess.Finish(ctx)
		delete(b.sessions, userID)
		b.recordModuleProgress(ctx, userID, sess.EntityType)
		b.send(userID, "Session complete! Everything has been scheduled for review.")
		return
	}

	item := sess.Queue.Current()
	if item.Phase.IsTeach() {
		b.presentTeach(userID, item)
		return
	}
	b.presentQuiz(ctx, userID, item)
}

func (b *Bot) presentTeach(userID int64, item *session.SessionItem) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s\n%s", item.Entity.Content, item.Entity.Translation)
	if item.Entity.Romanization != "" {
		fmt.Fprintf(&sb, "\n[%s]", item.Entity.Romanization)
	}
	if item.Entity.Example != "" {
		fmt.Fprintf(&sb, "\n\n%s", item.Entity.Example)
	}
	sb.WriteString("\n\nDid you know this?")

	keyboard := createKeyboard([][]MenuButton{
		{
			{Text: "Forgot", CallbackData: "rate:1"},
			{Text: "Fuzzy", CallbackData: "rate:3"},
			{Text: "Know it", CallbackData: "rate:5"},
		},
		{
			{Text: "Continue", CallbackData: "next"},
			{Text: "Skip this one", CallbackData: "skip"},
		},
	})
	b.sendWithKeyboard(userID, sb.String(), keyboard)
}

func (b *Bot) presentQuiz(ctx context.Context, userID int64, item *session.SessionItem) {
	options, correct, err := b.manager.QuizOptions(ctx, item, 4)
	if err != nil {
		b.log.Error("failed to build quiz options", zap.Int64("user_id", userID), zap.Error(err))
		b.send(userID, "Could not build the quiz, please try /today again.")
		return
	}

	var rows [][]MenuButton
	for i, opt := range options {
		rows = append(rows, []MenuButton{{
			Text:         opt,
			CallbackData: fmt.Sprintf("ans:%d:%d", i, correct),
		}})
	}
	rows = append(rows, []MenuButton{{Text: "Skip this one", CallbackData: "skip"}})

	prompt := fmt.Sprintf("What does %q mean?", item.Entity.Content)
	if item.Phase == session.PhaseErrorRetry {
		prompt = fmt.Sprintf("One more time: what does %q mean?", item.Entity.Content)
	}
	b.sendWithKeyboard(userID, prompt, createKeyboard(rows))
}

func (b *Bot) handleCallback(ctx context.Context, query *tgbotapi.CallbackQuery) {
	userID := query.From.ID
	defer func() {
		if _, err := b.api.Request(tgbotapi.NewCallback(query.ID, "")); err != nil {
			b.log.Debug("failed to answer callback", zap.Error(err))
		}
	}()

	if strings.HasPrefix(query.Data, "exam:") {
		b.handleExamAnswer(ctx, userID, query.Data)
		return
	}

	sess, ok := b.sessions[userID]
	if !ok {
		b.send(userID, "No active session. Send /today to start one.")
		return
	}

	switch {
	case strings.HasPrefix(query.Data, "rate:"):
		cur := sess.Queue.Current()
		if cur == nil || !cur.Phase.IsTeach() {
			// Stale button from an already-consumed teach card.
			return
		}
		rating, _ := strconv.Atoi(strings.TrimPrefix(query.Data, "rate:"))
		if err := sess.Queue.Rate(rating); err != nil {
			b.log.Debug("rate rejected", zap.Error(err))
		}
		// Rating a teach card also moves past it.
		_ = sess.Queue.Answer(true)
		b.presentCurrent(ctx, userID)

	case query.Data == "next":
		cur := sess.Queue.Current()
		if cur == nil || !cur.Phase.IsTeach() {
			return
		}
		_ = sess.Queue.Answer(true)
		b.presentCurrent(ctx, userID)

	case query.Data == "skip":
		if err := sess.Queue.Skip(); err != nil {
			b.log.Debug("skip rejected", zap.Error(err))
		}
		b.presentCurrent(ctx, userID)

	case strings.HasPrefix(query.Data, "ans:"):
		parts := strings.Split(strings.TrimPrefix(query.Data, "ans:"), ":")
		if len(parts) != 2 {
			return
		}
		selected, _ := strconv.Atoi(parts[0])
		correct, _ := strconv.Atoi(parts[1])

		if selected == correct {
			_ = sess.Queue.Answer(true)
			b.send(userID, "Correct!")
			b.presentCurrent(ctx, userID)
			return
		}

		_ = sess.Queue.Answer(false)
		b.send(userID, "Not quite, try again.")
		b.presentCurrent(ctx, userID)
	}
}

// handleExam starts a lesson certification round: every entity of the lesson
// is asked once and the tally goes through the round evaluator.
func (b *Bot) handleExam(ctx context.Context, userID int64, args string) {
	lessonID := strings.TrimSpace(args)
	if lessonID == "" {
		b.send(userID, "Usage: /exam <lesson>, e.g. /exam letter-basics-1")
		return
	}

	entityType, module := lessonEntityType(lessonID)
	decision, err := b.gate.CheckAccess(ctx, userID, module)
	if err != nil {
		b.log.Error("exam access check failed", zap.Int64("user_id", userID), zap.Error(err))
		b.send(userID, "Could not check access for that lesson.")
		return
	}
	if !decision.Allowed {
		b.send(userID, decision.Reason)
		return
	}

	entities, err := b.entities.GetByLesson(ctx, entityType, lessonID)
	if err != nil || len(entities) == 0 {
		b.send(userID, "No such lesson, or it has no content yet.")
		return
	}

	round, err := b.rounds.CurrentRound(ctx, userID)
	if err != nil {
		b.log.Error("failed to load round state", zap.Int64("user_id", userID), zap.Error(err))
		b.send(userID, "Could not start the exam, please try again.")
		return
	}

	b.exams[userID] = &examState{lessonID: lessonID, round: round, entities: entities}
	b.presentExamQuestion(ctx, userID)
}

func (b *Bot) presentExamQuestion(ctx context.Context, userID int64) {
	exam, ok := b.exams[userID]
	if !ok {
		return
	}

	if exam.idx >= len(exam.entities) {
		b.finishExam(ctx, userID, exam)
		return
	}

	entity := exam.entities[exam.idx]
	options, correct, err := b.manager.QuizOptions(ctx, &session.SessionItem{Entity: entity}, 4)
	if err != nil {
		b.log.Error("failed to build exam options", zap.Error(err))
		delete(b.exams, userID)
		b.send(userID, "Could not build the exam, please try again.")
		return
	}

	var rows [][]MenuButton
	for i, opt := range options {
		rows = append(rows, []MenuButton{{
			Text:         opt,
			CallbackData: fmt.Sprintf("exam:%d:%d", i, correct),
		}})
	}

	text := fmt.Sprintf("Question %d/%d: what does %q mean?",
		exam.idx+1, len(exam.entities), entity.Content)
	b.sendWithKeyboard(userID, text, createKeyboard(rows))
}

func (b *Bot) handleExamAnswer(ctx context.Context, userID int64, data string) {
	exam, ok := b.exams[userID]
	if !ok {
		return
	}

	parts := strings.Split(strings.TrimPrefix(data, "exam:"), ":")
	if len(parts) != 2 {
		return
	}
	selected, _ := strconv.Atoi(parts[0])
	correct, _ := strconv.Atoi(parts[1])

	if selected == correct {
		exam.correct++
	}
	exam.idx++
	b.presentExamQuestion(ctx, userID)
}

func (b *Bot) finishExam(ctx context.Context, userID int64, exam *examState) {
	delete(b.exams, userID)

	outcome, err := b.rounds.SubmitRound(ctx, userID, exam.lessonID, exam.round,
		len(exam.entities), exam.correct)
	if err != nil {
		b.log.Error("failed to submit round", zap.Int64("user_id", userID), zap.Error(err))
		b.send(userID, "Could not record the exam result.")
		return
	}

	attempts := 1
	if history, err := b.rounds.History(ctx, userID, exam.lessonID); err == nil {
		attempts = len(history)
	}

	result := outcome.Result
	if result.Passed {
		b.send(userID, fmt.Sprintf("Passed! %d/%d (%.0f%%), attempt %d. Next round: %d.",
			result.CorrectCount, result.TotalQuestions, result.Accuracy*100, attempts, outcome.NextRound))
		return
	}
	b.send(userID, fmt.Sprintf("Not passed: %d/%d (%.0f%%). You need 90%%, try this round again.",
		result.CorrectCount, result.TotalQuestions, result.Accuracy*100))
}

// recordModuleProgress refreshes the organic module progress from the user's
// mastery share after a finished session, so unlock thresholds can flip.
func (b *Bot) recordModuleProgress(ctx context.Context, userID int64, entityType models.EntityType) {
	mastery, err := b.records.ModuleMastery(ctx, userID, entityType)
	if err != nil {
		b.log.Error("failed to compute module mastery", zap.Int64("user_id", userID), zap.Error(err))
		return
	}

	if _, err := b.gate.RecordProgress(ctx, userID, moduleForEntity(entityType), mastery); err != nil {
		b.log.Error("failed to record module progress", zap.Int64("user_id", userID), zap.Error(err))
	}
}

// moduleForEntity maps an entity type to the module it belongs to.
func moduleForEntity(entityType models.EntityType) models.ModuleType {
	switch entityType {
	case models.EntityWord:
		return models.ModuleWord
	case models.EntitySentence:
		return models.ModuleSentence
	}
	return models.ModuleLetter
}

// lessonEntityType maps a lesson id prefix to its entity type and module.
func lessonEntityType(lessonID string) (models.EntityType, models.ModuleType) {
	prefix, _, _ := strings.Cut(lessonID, "-")
	switch models.ModuleType(prefix) {
	case models.ModuleWord:
		return models.EntityWord, models.ModuleWord
	case models.ModuleSentence:
		return models.EntitySentence, models.ModuleSentence
	}
	return models.EntityLetter, models.ModuleLetter
}
