// Package bot wires Telegram updates to the engines. It only decodes
// input, routes it and renders keyboards; every decision lives in the
// engine packages.
package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"clinicbot/db"
	"clinicbot/internal/commands"
	"clinicbot/internal/instruments"
	"clinicbot/internal/registration"
	"clinicbot/internal/session"
	"clinicbot/internal/shifts"
	"clinicbot/internal/survey"
)

type Bot struct {
	api         *tgbotapi.BotAPI
	reg         *registration.Service
	flow        *survey.Flow
	shifts      *shifts.Service
	instruments *instruments.Service
	sessions    *session.Manager
	log         *zap.Logger
}

func New(
	api *tgbotapi.BotAPI,
	reg *registration.Service,
	flow *survey.Flow,
	shiftSvc *shifts.Service,
	instrSvc *instruments.Service,
	sessions *session.Manager,
	log *zap.Logger,
) *Bot {
	return &Bot{
		api:         api,
		reg:         reg,
		flow:        flow,
		shifts:      shiftSvc,
		instruments: instrSvc,
		sessions:    sessions,
		log:         log,
	}
}

// Run blocks on the long-poll update loop until the context is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.handleUpdate(ctx, update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil && update.Message.IsCommand():
		b.handleCommand(ctx, update.Message)
	case update.Message != nil && len(update.Message.Photo) > 0:
		b.handlePhoto(ctx, update.Message)
	case update.Message != nil:
		b.handleText(ctx, update.Message)
	}
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID

	switch msg.Command() {
	case "start":
		b.handleStart(ctx, chatID)
	case "help":
		b.sendText(chatID, helpText)
	case "shift":
		b.handleShift(ctx, chatID)
	case "move":
		b.handleMoveStart(ctx, chatID)
	case "cancel":
		b.sessions.ClearTransfer(chatID)
		b.sessions.ClearManualShift(chatID)
		b.sendText(chatID, "Действие отменено.")
	default:
		b.sendText(chatID, "Неизвестная команда. /help — список команд.")
	}
}

const helpText = "Команды:\n" +
	"/start — регистрация\n" +
	"/shift — записаться на смену или освободить её\n" +
	"/move — перенести инструмент в стерилизационную\n" +
	"/cancel — отменить текущее действие"

func (b *Bot) handleStart(ctx context.Context, chatID int64) {
	worker, err := b.reg.ByChatID(ctx, strconv.FormatInt(chatID, 10))
	if err != nil {
		b.log.Error("lookup worker failed", zap.Int64("chat_id", chatID), zap.Error(err))
		return
	}
	if worker != nil {
		b.sendText(chatID, fmt.Sprintf("Здравствуйте, %s!\n\n%s", worker.FullName, helpText))
		return
	}

	unregistered, err := b.reg.ListUnregistered(ctx)
	if err != nil {
		b.log.Error("list unregistered failed", zap.Error(err))
		return
	}
	if len(unregistered) == 0 {
		b.sendText(chatID, "Свободных анкет для регистрации нет. Обратитесь к администратору.")
		return
	}

	var rows [][]tgbotapi.InlineKeyboardButton
	for _, w := range unregistered {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(w.FullName, commands.EncodeRef("reg", w.ID))))
	}
	out := tgbotapi.NewMessage(chatID, "Выберите себя в списке:")
	out.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	b.send(out)
}

func (b *Bot) handleShift(ctx context.Context, chatID int64) {
	assistant, err := b.shifts.Assistant(ctx, strconv.FormatInt(chatID, 10))
	if err != nil {
		b.log.Error("lookup assistant failed", zap.Int64("chat_id", chatID), zap.Error(err))
		return
	}
	if assistant == nil {
		b.sendText(chatID, "Сначала зарегистрируйтесь: /start")
		return
	}

	shiftType, date, ok := b.shifts.GuessNow()
	if !ok {
		b.sendText(chatID, "Запись на смену доступна с 8:00 до 20:00.")
		return
	}

	current, err := b.shifts.CurrentShift(ctx, assistant.ID, date, shiftType)
	if err != nil {
		b.log.Error("lookup current shift failed", zap.Int64("assistant_id", assistant.ID), zap.Error(err))
		return
	}
	if current != nil {
		out := tgbotapi.NewMessage(chatID,
			fmt.Sprintf("Вы записаны к врачу %s (%s, %s).", current.DoctorName, date, shiftTypeLabel(shiftType)))
		out.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Освободить смену", "shift:release")))
		b.send(out)
		return
	}

	free, err := b.shifts.ListFree(ctx, date, shiftType)
	if err != nil {
		b.log.Error("list free shifts failed", zap.Error(err))
		return
	}

	var rows [][]tgbotapi.InlineKeyboardButton
	for _, slot := range free {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(slot.DoctorName, commands.EncodeRef("shift:claim", slot.ID))))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("Другой врач…", "shift:manual")))

	out := tgbotapi.NewMessage(chatID,
		fmt.Sprintf("Свободные смены на %s (%s):", date, shiftTypeLabel(shiftType)))
	out.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	b.send(out)
}

func shiftTypeLabel(shiftType string) string {
	switch shiftType {
	case db.ShiftMorning:
		return "утро"
	case db.ShiftEvening:
		return "вечер"
	}
	return shiftType
}

func (b *Bot) handleMoveStart(ctx context.Context, chatID int64) {
	worker, err := b.reg.ByChatID(ctx, strconv.FormatInt(chatID, 10))
	if err != nil || worker == nil {
		b.sendText(chatID, "Сначала зарегистрируйтесь: /start")
		return
	}

	cabinets, err := b.instruments.ListCabinets(ctx, false)
	if err != nil {
		b.log.Error("list cabinets failed", zap.Error(err))
		return
	}
	if len(cabinets) == 0 {
		b.sendText(chatID, "Кабинеты не настроены.")
		return
	}

	b.sessions.StartTransfer(chatID)

	var rows [][]tgbotapi.InlineKeyboardButton
	for _, c := range cabinets {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(c.Name, commands.EncodeRef("mv:cab", c.ID))))
	}
	out := tgbotapi.NewMessage(chatID, "Из какого кабинета переносим инструмент?")
	out.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	b.send(out)
}

func (b *Bot) handleCallback(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	if cq.Message == nil {
		return
	}
	chatID := cq.Message.Chat.ID
	data := cq.Data

	// Stop the button spinner regardless of the outcome.
	if _, err := b.api.Request(tgbotapi.NewCallback(cq.ID, "")); err != nil {
		b.log.Debug("callback ack failed", zap.Error(err))
	}

	switch {
	case strings.HasPrefix(data, "rate:"):
		cmd, err := commands.ParseRate(data)
		if err != nil {
			b.log.Warn("bad rate payload", zap.String("data", data))
			return
		}
		if err := b.flow.SubmitRating(ctx, chatID, cmd); err != nil {
			b.log.Error("submit rating failed", zap.Int64("chat_id", chatID), zap.Error(err))
		}

	case strings.HasPrefix(data, "reg:"):
		b.handleRegister(ctx, chatID, data)

	case strings.HasPrefix(data, "shift:claim:"):
		b.handleClaim(ctx, chatID, data)

	case data == "shift:release":
		b.handleRelease(ctx, chatID)

	case data == "shift:manual":
		shiftType, date, ok := b.shifts.GuessNow()
		if !ok {
			b.sendText(chatID, "Запись на смену доступна с 8:00 до 20:00.")
			return
		}
		b.sessions.StartManualShift(chatID, date, shiftType)
		b.sendText(chatID, "Напишите фамилию врача, с которым работаете:")

	case strings.HasPrefix(data, "mv:cab:"):
		b.handleMoveCabinet(ctx, chatID, data)

	case strings.HasPrefix(data, "mv:inst:"):
		b.handleMoveInstrument(ctx, chatID, data)
	}
}

func (b *Bot) handleRegister(ctx context.Context, chatID int64, data string) {
	workerID, ok := commands.ParseRef("reg", data)
	if !ok {
		return
	}
	bound, err := b.reg.Bind(ctx, workerID, strconv.FormatInt(chatID, 10))
	if err != nil {
		b.log.Error("bind failed", zap.Int64("worker_id", workerID), zap.Error(err))
		return
	}
	if !bound {
		b.sendText(chatID, "Не удалось зарегистрироваться: анкета уже занята или этот чат уже привязан.")
		return
	}
	b.sendText(chatID, "Вы зарегистрированы! Можете отправить свою фотографию для анкеты.\n\n"+helpText)
}

func (b *Bot) handleClaim(ctx context.Context, chatID int64, data string) {
	shiftID, ok := commands.ParseRef("shift:claim", data)
	if !ok {
		return
	}
	assistant, err := b.shifts.Assistant(ctx, strconv.FormatInt(chatID, 10))
	if err != nil || assistant == nil {
		b.sendText(chatID, "Сначала зарегистрируйтесь: /start")
		return
	}
	claimed, err := b.shifts.Claim(ctx, assistant, shiftID)
	if err != nil {
		b.log.Error("claim failed", zap.Int64("shift_id", shiftID), zap.Error(err))
		return
	}
	if !claimed {
		b.sendText(chatID, "Смена уже занята, либо у вас уже есть смена в это время.")
		return
	}
	b.sendText(chatID, "Вы записаны на смену.")
}

func (b *Bot) handleRelease(ctx context.Context, chatID int64) {
	assistant, err := b.shifts.Assistant(ctx, strconv.FormatInt(chatID, 10))
	if err != nil || assistant == nil {
		return
	}
	shiftType, date, ok := b.shifts.GuessNow()
	if !ok {
		b.sendText(chatID, "Освобождение смены доступно с 8:00 до 20:00.")
		return
	}
	if err := b.shifts.Release(ctx, assistant.ID, date, shiftType); err != nil {
		b.log.Error("release failed", zap.Int64("assistant_id", assistant.ID), zap.Error(err))
		return
	}
	b.sendText(chatID, "Смена освобождена.")
}

func (b *Bot) handleMoveCabinet(ctx context.Context, chatID int64, data string) {
	cabinetID, ok := commands.ParseRef("mv:cab", data)
	if !ok {
		return
	}
	transfer := b.sessions.Transfer(chatID)
	if transfer == nil || transfer.Step != session.TransferPickCabinet {
		return
	}

	items, err := b.instruments.ListInstruments(ctx, cabinetID, false)
	if err != nil {
		b.log.Error("list instruments failed", zap.Int64("cabinet_id", cabinetID), zap.Error(err))
		return
	}
	if len(items) == 0 {
		b.sendText(chatID, "В этом кабинете нет инструментов.")
		return
	}

	transfer.FromCabinetID = cabinetID
	transfer.Step = session.TransferPickInstrument

	var rows [][]tgbotapi.InlineKeyboardButton
	for _, item := range items {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(item.Name, commands.EncodeRef("mv:inst", item.ID))))
	}
	out := tgbotapi.NewMessage(chatID, "Какой инструмент переносим?")
	out.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	b.send(out)
}

func (b *Bot) handleMoveInstrument(ctx context.Context, chatID int64, data string) {
	instrumentID, ok := commands.ParseRef("mv:inst", data)
	if !ok {
		return
	}
	transfer := b.sessions.Transfer(chatID)
	if transfer == nil || transfer.Step != session.TransferPickInstrument {
		return
	}
	transfer.InstrumentID = instrumentID
	transfer.Step = session.TransferAwaitBeforePhoto
	b.sendText(chatID, "Пришлите фото инструмента ДО переноса.")
}

func (b *Bot) handlePhoto(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	fileID := msg.Photo[len(msg.Photo)-1].FileID

	transfer := b.sessions.Transfer(chatID)
	switch {
	case transfer != nil && transfer.Step == session.TransferAwaitBeforePhoto:
		transfer.BeforePhotoID = fileID
		transfer.Step = session.TransferAwaitAfterPhoto
		b.sendText(chatID, "Теперь перенесите инструмент в стерилизационную и пришлите фото ПОСЛЕ.")

	case transfer != nil && transfer.Step == session.TransferAwaitAfterPhoto:
		b.finishTransfer(ctx, chatID, transfer, fileID)

	default:
		b.handleProfilePhoto(ctx, chatID, fileID)
	}
}

func (b *Bot) finishTransfer(ctx context.Context, chatID int64, transfer *session.Transfer, afterPhotoID string) {
	defer b.sessions.ClearTransfer(chatID)

	target, err := b.instruments.SterilizationCabinet(ctx)
	if err != nil {
		b.log.Error("resolve sterilization cabinet failed", zap.Error(err))
		b.sendText(chatID, "Не удалось выполнить перенос. Попробуйте позже.")
		return
	}
	if target == nil {
		b.sendText(chatID, "Стерилизационная не настроена. Обратитесь к администратору.")
		return
	}

	moved, err := b.instruments.Transfer(ctx, instruments.TransferRequest{
		InstrumentID:  transfer.InstrumentID,
		FromCabinetID: transfer.FromCabinetID,
		ToCabinetID:   target.ID,
		BeforePhotoID: transfer.BeforePhotoID,
		AfterPhotoID:  afterPhotoID,
		MovedByChatID: strconv.FormatInt(chatID, 10),
	})
	if err != nil {
		b.log.Error("transfer failed", zap.Int64("instrument_id", transfer.InstrumentID), zap.Error(err))
		b.sendText(chatID, "Не удалось выполнить перенос. Попробуйте позже.")
		return
	}
	if !moved {
		b.sendText(chatID, "Перенос отклонён: проверьте, что инструмент всё ещё в исходном кабинете.")
		return
	}
	b.sendText(chatID, "Перенос записан. Спасибо!")
}

func (b *Bot) handleProfilePhoto(ctx context.Context, chatID int64, fileID string) {
	worker, err := b.reg.ByChatID(ctx, strconv.FormatInt(chatID, 10))
	if err != nil || worker == nil {
		return
	}
	if err := b.reg.SetPhoto(ctx, worker.ID, fileID); err != nil {
		b.log.Error("set photo failed", zap.Int64("worker_id", worker.ID), zap.Error(err))
		return
	}
	b.sendText(chatID, "Фотография обновлена.")
}

func (b *Bot) handleText(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return
	}

	// An in-progress survey has first claim on free-form text.
	consumed, err := b.flow.SubmitText(ctx, chatID, text)
	if err != nil {
		b.log.Error("submit text failed", zap.Int64("chat_id", chatID), zap.Error(err))
		return
	}
	if consumed {
		return
	}

	if pending := b.sessions.ManualShift(chatID); pending != nil {
		b.handleManualShift(ctx, chatID, text, pending)
		return
	}

	b.sendText(chatID, helpText)
}

func (b *Bot) handleManualShift(ctx context.Context, chatID int64, doctorName string, pending *session.ManualShift) {
	defer b.sessions.ClearManualShift(chatID)

	assistant, err := b.shifts.Assistant(ctx, strconv.FormatInt(chatID, 10))
	if err != nil || assistant == nil {
		return
	}
	claimed, err := b.shifts.ClaimManual(ctx, assistant, doctorName, pending.Date, pending.Type)
	if err != nil {
		b.log.Error("manual claim failed", zap.String("doctor", doctorName), zap.Error(err))
		return
	}
	if !claimed {
		b.sendText(chatID, "У вас уже есть смена в это время.")
		return
	}
	b.sendText(chatID, fmt.Sprintf("Вы записаны к врачу %s.", doctorName))
}

func (b *Bot) sendText(chatID int64, text string) {
	b.send(tgbotapi.NewMessage(chatID, text))
}

func (b *Bot) send(msg tgbotapi.Chattable) {
	if _, err := b.api.Send(msg); err != nil {
		b.log.Error("send failed", zap.Error(err))
	}
}
