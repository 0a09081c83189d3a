package quotes

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalworks/storefront/internal/notify"
	"github.com/signalworks/storefront/internal/shared"
)

var (
	staff = &shared.Actor{UserID: "staff-1", Name: "Meera", Role: shared.RoleStaff}
	buyer = &shared.Actor{UserID: "user-1", Name: "Asha", Email: "asha@example.com", Role: shared.RoleUser}
	other = &shared.Actor{UserID: "user-2", Role: shared.RoleUser}
)

type fixture struct {
	svc      *Service
	repo     *memoryRepo
	notifier *recordingNotifier
	now      time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		repo:     newMemoryRepo(),
		notifier: &recordingNotifier{},
		now:      time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC),
	}
	products := stubProducts{
		"radio":   {ID: "radio", Title: "Tactical Radio", Price: 1500, Stock: 5},
		"antenna": {ID: "antenna", Title: "HF Antenna", Price: 500, Stock: 0},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f.svc = NewService(f.repo, products, f.notifier, nil, logger, ServiceConfig{
		Now: func() time.Time { return f.now },
	})
	return f
}

func validRequest() CreateQuoteRequest {
	return CreateQuoteRequest{
		Buyer:   BuyerInput{FullName: " Asha Rao ", Email: " Asha@Example.COM ", Mobile: "9800000000"},
		Address: AddressInput{HouseFlat: "12", StreetArea: "Lake Road", City: "Pune", State: "MH", Pincode: "411001"},
		Items: []ItemInput{
			{ProductID: "radio", Quantity: 1},
			{ProductID: "antenna", Quantity: 1},
		},
	}
}

func (f *fixture) create(t *testing.T, requester *shared.Actor) *Quote {
	t.Helper()
	q, err := f.svc.Create(context.Background(), validRequest(), requester)
	require.NoError(t, err)
	return q
}

func TestCreateSnapshotsProductsAndComputesTotal(t *testing.T) {
	f := newFixture(t)
	q := f.create(t, buyer)

	assert.Equal(t, StatusPending, q.Status)
	assert.Equal(t, ConversationOpen, q.ConversationStatus)
	assert.Equal(t, 2000.0, q.OriginalTotal)
	assert.Equal(t, "asha@example.com", q.Buyer.Email)
	assert.Equal(t, "Asha Rao", q.Buyer.FullName)
	require.Len(t, q.LineItems, 2)
	assert.Equal(t, "Tactical Radio", q.LineItems[0].Title)
	assert.Equal(t, "HF Antenna", q.LineItems[1].Title)
	require.NotNil(t, q.UserID)
	assert.Equal(t, "user-1", *q.UserID)
	assert.Equal(t, []notify.Event{notify.QuoteRequested}, f.notifier.names())
}

func TestCreateIgnoresClientPricesAndStock(t *testing.T) {
	f := newFixture(t)
	req := validRequest()
	req.Items = []ItemInput{{ProductID: "antenna", Quantity: 40}}
	q, err := f.svc.Create(context.Background(), req, nil)
	require.NoError(t, err)
	assert.Equal(t, 20000.0, q.OriginalTotal)
	assert.Nil(t, q.UserID)
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(t)
	cases := map[string]func(*CreateQuoteRequest){
		"blank name":     func(r *CreateQuoteRequest) { r.Buyer.FullName = "   " },
		"bad email":      func(r *CreateQuoteRequest) { r.Buyer.Email = "not-an-email" },
		"blank city":     func(r *CreateQuoteRequest) { r.Address.City = " " },
		"no items":       func(r *CreateQuoteRequest) { r.Items = nil },
		"zero quantity":  func(r *CreateQuoteRequest) { r.Items[0].Quantity = 0 },
		"blank product":  func(r *CreateQuoteRequest) { r.Items[0].ProductID = "  " },
		"blank pincode":  func(r *CreateQuoteRequest) { r.Address.Pincode = "" },
		"missing mobile": func(r *CreateQuoteRequest) { r.Buyer.Mobile = "" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			req := validRequest()
			mutate(&req)
			_, err := f.svc.Create(context.Background(), req, nil)
			assert.True(t, errors.Is(err, shared.ErrValidation), "got %v", err)
		})
	}
	assert.Empty(t, f.repo.quotes)
}

func TestCreateUnknownProduct(t *testing.T) {
	f := newFixture(t)
	req := validRequest()
	req.Items = append(req.Items, ItemInput{ProductID: "ghost", Quantity: 1})
	_, err := f.svc.Create(context.Background(), req, nil)
	assert.True(t, errors.Is(err, shared.ErrNotFound))
	assert.Empty(t, f.repo.quotes)
}

func TestRespondWithPrice(t *testing.T) {
	f := newFixture(t)
	q := f.create(t, buyer)

	priced, err := f.svc.RespondWithPrice(context.Background(), q.ID, PriceInput{DiscountPercentage: ptr(10.0)}, staff)
	require.NoError(t, err)
	assert.Equal(t, StatusQuoted, priced.Status)
	assert.Equal(t, 1800.0, *priced.QuotedTotal)
	assert.Equal(t, 10.0, *priced.DiscountPercentage)
	require.NotNil(t, priced.ValidUntil)
	assert.True(t, priced.ValidUntil.Equal(f.now.Add(DefaultValidity)))
	assert.Contains(t, f.notifier.names(), notify.QuoteResponded)
}

func TestRespondWithPriceGuards(t *testing.T) {
	f := newFixture(t)
	q := f.create(t, buyer)

	_, err := f.svc.RespondWithPrice(context.Background(), q.ID, PriceInput{QuotedTotal: ptr(1.0)}, buyer)
	assert.True(t, errors.Is(err, shared.ErrUnauthorized))

	_, err = f.svc.RespondWithPrice(context.Background(), q.ID, PriceInput{}, staff)
	assert.True(t, errors.Is(err, shared.ErrValidation))

	_, err = f.svc.Reject(context.Background(), q.ID, nil, staff)
	require.NoError(t, err)
	_, err = f.svc.RespondWithPrice(context.Background(), q.ID, PriceInput{QuotedTotal: ptr(1.0)}, staff)
	assert.True(t, errors.Is(err, shared.ErrInvalidState))

	stored, err := f.repo.Get(context.Background(), q.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.QuotedTotal)
}

func TestUpdatePriceKeepsValidity(t *testing.T) {
	f := newFixture(t)
	q := f.create(t, buyer)
	until := f.now.Add(48 * time.Hour)
	_, err := f.svc.RespondWithPrice(context.Background(), q.ID, PriceInput{QuotedTotal: ptr(1900.0), ValidUntil: &until}, staff)
	require.NoError(t, err)

	f.now = f.now.Add(time.Hour)
	updated, err := f.svc.UpdatePrice(context.Background(), q.ID, PriceInput{QuotedTotal: ptr(1850.0)}, staff)
	require.NoError(t, err)
	assert.Equal(t, 1850.0, *updated.QuotedTotal)
	assert.InDelta(t, 7.5, *updated.DiscountPercentage, 0.001)
	assert.True(t, updated.ValidUntil.Equal(until))
}

func TestOwnerAcceptAndExpiry(t *testing.T) {
	f := newFixture(t)
	q := f.create(t, buyer)

	_, err := f.svc.SetStatus(context.Background(), q.ID, StatusAccepted, buyer)
	assert.True(t, errors.Is(err, shared.ErrInvalidState), "pending quote cannot be accepted")

	_, err = f.svc.RespondWithPrice(context.Background(), q.ID, PriceInput{DiscountPercentage: ptr(10.0)}, staff)
	require.NoError(t, err)

	_, err = f.svc.SetStatus(context.Background(), q.ID, StatusAccepted, other)
	assert.True(t, errors.Is(err, shared.ErrUnauthorized))

	f.now = f.now.Add(DefaultValidity + time.Minute)
	_, err = f.svc.SetStatus(context.Background(), q.ID, StatusAccepted, buyer)
	assert.True(t, errors.Is(err, shared.ErrQuoteExpired))

	stored, err := f.repo.Get(context.Background(), q.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusQuoted, stored.Status)
	assert.Equal(t, StatusExpired, stored.EffectiveStatus(f.now))

	f.now = f.now.Add(-2 * time.Minute)
	accepted, err := f.svc.SetStatus(context.Background(), q.ID, StatusAccepted, buyer)
	require.NoError(t, err)
	assert.Equal(t, StatusAccepted, accepted.Status)
	assert.Contains(t, f.notifier.names(), notify.QuoteAccepted)
}

func TestOwnerCannotSetOtherStatuses(t *testing.T) {
	f := newFixture(t)
	q := f.create(t, buyer)
	_, err := f.svc.SetStatus(context.Background(), q.ID, StatusOrdered, buyer)
	assert.True(t, errors.Is(err, shared.ErrUnauthorized))

	_, err = f.svc.SetStatus(context.Background(), q.ID, Status("bogus"), staff)
	assert.True(t, errors.Is(err, shared.ErrValidation))
}

func TestStaffSetStatusIsUnguarded(t *testing.T) {
	f := newFixture(t)
	q := f.create(t, buyer)
	_, err := f.svc.Reject(context.Background(), q.ID, ptr("out of range"), staff)
	require.NoError(t, err)

	reopened, err := f.svc.SetStatus(context.Background(), q.ID, StatusPending, staff)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, reopened.Status)
	assert.Equal(t, "out of range", *reopened.AdminNotes)
}

func TestBuyerRejectFromAnyNonTerminalStatus(t *testing.T) {
	f := newFixture(t)
	q := f.create(t, buyer)
	rejected, err := f.svc.SetStatus(context.Background(), q.ID, StatusRejected, buyer)
	require.NoError(t, err)
	assert.Equal(t, StatusRejected, rejected.Status)

	_, err = f.svc.SetStatus(context.Background(), q.ID, StatusRejected, buyer)
	assert.True(t, errors.Is(err, shared.ErrInvalidState))
}

func TestGuestSetStatusChecksEmail(t *testing.T) {
	f := newFixture(t)
	q := f.create(t, nil)
	_, err := f.svc.RespondWithPrice(context.Background(), q.ID, PriceInput{QuotedTotal: ptr(1800.0)}, staff)
	require.NoError(t, err)

	_, err = f.svc.GuestSetStatus(context.Background(), q.ID, StatusAccepted, "someone@example.com")
	assert.True(t, errors.Is(err, shared.ErrUnauthorized))

	_, err = f.svc.GuestSetStatus(context.Background(), q.ID, StatusOrdered, "asha@example.com")
	assert.True(t, errors.Is(err, shared.ErrValidation))

	accepted, err := f.svc.GuestSetStatus(context.Background(), q.ID, StatusAccepted, "  ASHA@example.com ")
	require.NoError(t, err)
	assert.Equal(t, StatusAccepted, accepted.Status)
}

func TestMessagesAppendInOrderWithoutStatusChange(t *testing.T) {
	f := newFixture(t)
	q := f.create(t, buyer)

	_, err := f.svc.AppendUserMessage(context.Background(), q.ID, "  Can you do 10% off?  ", buyer)
	require.NoError(t, err)
	f.now = f.now.Add(time.Minute)
	_, err = f.svc.AppendAdminMessage(context.Background(), q.ID, "Working on it", staff)
	require.NoError(t, err)
	f.now = f.now.Add(time.Minute)
	got, err := f.svc.AppendGuestMessage(context.Background(), q.ID, "Thanks", "asha@example.com")
	require.NoError(t, err)

	require.Len(t, got.Messages, 3)
	assert.Equal(t, SenderUser, got.Messages[0].Sender)
	assert.Equal(t, "Can you do 10% off?", got.Messages[0].Content)
	assert.Equal(t, SenderAdmin, got.Messages[1].Sender)
	assert.Equal(t, "Meera", got.Messages[1].SenderName)
	assert.Equal(t, "Thanks", got.Messages[2].Content)
	assert.Equal(t, StatusPending, got.Status)
	assert.Equal(t, ConversationOpen, got.ConversationStatus)

	_, err = f.svc.AppendUserMessage(context.Background(), q.ID, "   ", buyer)
	assert.True(t, errors.Is(err, shared.ErrValidation))
	_, err = f.svc.AppendUserMessage(context.Background(), q.ID, "hi", other)
	assert.True(t, errors.Is(err, shared.ErrUnauthorized))
	_, err = f.svc.AppendGuestMessage(context.Background(), q.ID, "hi", "x@example.com")
	assert.True(t, errors.Is(err, shared.ErrUnauthorized))
	_, err = f.svc.AppendAdminMessage(context.Background(), q.ID, "hi", buyer)
	assert.True(t, errors.Is(err, shared.ErrUnauthorized))

	names := f.notifier.names()
	assert.Contains(t, names, notify.MessageToAdmin)
	assert.Contains(t, names, notify.MessageToUser)
}

func TestClosedConversationBlocksBuyerMessages(t *testing.T) {
	f := newFixture(t)
	q := f.create(t, buyer)

	_, err := f.svc.SetConversationStatus(context.Background(), q.ID, ConversationClosed, buyer)
	assert.True(t, errors.Is(err, shared.ErrUnauthorized))
	closed, err := f.svc.SetConversationStatus(context.Background(), q.ID, ConversationClosed, staff)
	require.NoError(t, err)
	assert.Equal(t, ConversationClosed, closed.ConversationStatus)

	_, err = f.svc.AppendUserMessage(context.Background(), q.ID, "hello?", buyer)
	assert.True(t, errors.Is(err, shared.ErrInvalidState))
	_, err = f.svc.AppendAdminMessage(context.Background(), q.ID, "closing note", staff)
	assert.NoError(t, err)
}

func TestGetVisibility(t *testing.T) {
	f := newFixture(t)
	q := f.create(t, buyer)

	_, err := f.svc.Get(context.Background(), q.ID, buyer)
	assert.NoError(t, err)
	_, err = f.svc.Get(context.Background(), q.ID, staff)
	assert.NoError(t, err)
	_, err = f.svc.Get(context.Background(), q.ID, other)
	assert.True(t, errors.Is(err, shared.ErrUnauthorized))
	_, err = f.svc.Get(context.Background(), q.ID, nil)
	assert.True(t, errors.Is(err, shared.ErrUnauthorized))
	_, err = f.svc.GetForGuest(context.Background(), q.ID, "asha@example.com")
	assert.NoError(t, err)
	_, err = f.svc.Get(context.Background(), "missing", staff)
	assert.True(t, errors.Is(err, shared.ErrNotFound))
}

func TestListAndDelete(t *testing.T) {
	f := newFixture(t)
	q1 := f.create(t, buyer)
	f.now = f.now.Add(time.Minute)
	f.create(t, other)

	_, err := f.svc.List(context.Background(), ListFilter{}, buyer)
	assert.True(t, errors.Is(err, shared.ErrUnauthorized))

	all, err := f.svc.List(context.Background(), ListFilter{}, staff)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	mine, err := f.svc.ListForUser(context.Background(), buyer, shared.Pagination{})
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, q1.ID, mine[0].ID)

	assert.True(t, errors.Is(f.svc.Delete(context.Background(), q1.ID, buyer), shared.ErrUnauthorized))
	require.NoError(t, f.svc.Delete(context.Background(), q1.ID, staff))
	assert.True(t, errors.Is(f.svc.Delete(context.Background(), q1.ID, staff), shared.ErrNotFound))
}
