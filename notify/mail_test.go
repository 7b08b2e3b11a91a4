package notify

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookingflow/booking"
	"bookingflow/directory"
	"bookingflow/locale"
)

func TestSendWithdrawn_UsesOverrideAddress(t *testing.T) {
	h := newHarness(t, time.Date(2025, 1, 9, 12, 0, 0, 0, time.UTC))
	job := booking.Job{ID: 42, UserEmail: "override@example.com", Due: time.Date(2025, 1, 10, 10, 0, 0, 0, time.UTC)}
	customer := directory.User{ID: 100, Email: "customer@example.com", Name: "Kund"}
	translator := directory.User{ID: 7, Email: "tolk@example.com", Name: "Tolk"}

	require.NoError(t, h.service.SendWithdrawn(context.Background(), job, customer, &translator))
	require.Len(t, h.mailer.sent, 2)
	assert.Equal(t, "override@example.com", h.mailer.sent[0].to)
	assert.Equal(t, TemplateWithdrawnCustomer, h.mailer.sent[0].template)
	assert.Equal(t, "Information om avslutad tolkning för bokningsnummer #42", h.mailer.sent[0].subject)
	assert.Equal(t, "tolk@example.com", h.mailer.sent[1].to)
	assert.Equal(t, TemplateWithdrawnTranslator, h.mailer.sent[1].template)
}

func TestSendSessionEnded_Framing(t *testing.T) {
	h := newHarness(t, time.Date(2025, 1, 9, 12, 0, 0, 0, time.UTC))
	job := booking.Job{ID: 42}
	customer := directory.User{Email: "customer@example.com"}
	translator := directory.User{Email: "tolk@example.com"}

	require.NoError(t, h.service.SendSessionEnded(context.Background(), job, customer, translator, "01 tim 30 min", locale.ForTextInvoice))
	require.Len(t, h.mailer.sent, 2)
	assert.Equal(t, "customer@example.com", h.mailer.sent[0].to)
	assert.Equal(t, "faktura", h.mailer.sent[0].data["for_text"])
	assert.Equal(t, "01 tim 30 min", h.mailer.sent[0].data["session_time"])
	assert.Equal(t, "tolk@example.com", h.mailer.sent[1].to)
	assert.Equal(t, "lön", h.mailer.sent[1].data["for_text"])
}

func TestSendTranslatorChanged_ContinuesAfterFailure(t *testing.T) {
	h := newHarness(t, time.Date(2025, 1, 9, 12, 0, 0, 0, time.UTC))
	h.mailer.fail["customer@example.com"] = true
	job := booking.Job{ID: 42}
	customer := directory.User{Email: "customer@example.com"}
	previous := directory.User{Email: "old@example.com"}
	current := directory.User{Email: "new@example.com"}

	err := h.service.SendTranslatorChanged(context.Background(), job, customer, &previous, current)
	require.Error(t, err)
	require.Len(t, h.mailer.sent, 3)
	assert.Equal(t, TemplateTranslatorOld, h.mailer.sent[1].template)
	assert.Equal(t, TemplateTranslatorNew, h.mailer.sent[2].template)
	assert.Equal(t, "Meddelande om tilldelning av tolkuppdrag för uppdrag # 42)", h.mailer.sent[2].subject)
}

func TestSendDateChanged_WithoutTranslator(t *testing.T) {
	h := newHarness(t, time.Date(2025, 1, 9, 12, 0, 0, 0, time.UTC))
	job := booking.Job{ID: 42, Due: time.Date(2025, 1, 11, 10, 0, 0, 0, time.UTC)}
	customer := directory.User{Email: "customer@example.com"}

	require.NoError(t, h.service.SendDateChanged(context.Background(), job, customer, nil, time.Date(2025, 1, 10, 10, 0, 0, 0, time.UTC)))
	require.Len(t, h.mailer.sent, 1)
	assert.Equal(t, "2025-01-10 10:00:00", h.mailer.sent[0].data["old_time"])
}

func TestPushHelpers_HonourOptOuts(t *testing.T) {
	h := newHarness(t, time.Date(2025, 1, 9, 23, 0, 0, 0, time.UTC))
	job := booking.Job{ID: 42, FromLanguageID: 5, Duration: 45, Due: time.Date(2025, 1, 10, 10, 0, 0, 0, time.UTC)}
	silent := directory.User{Email: "silent@example.com", Meta: directory.Meta{NotGetNotification: true}}
	sleeper := directory.User{Email: "sleeper@example.com", Meta: directory.Meta{NotGetNighttime: true}}

	require.NoError(t, h.service.PushCustomerCancelled(context.Background(), job, silent))
	assert.Empty(t, h.push.msgs)

	require.NoError(t, h.service.PushTranslatorCancelled(context.Background(), job, sleeper))
	require.Len(t, h.push.msgs, 1)
	msg := h.push.msgs[0]
	assert.Equal(t, "2025-01-10 07:00:00 GMT+0000", msg.SendAfter)
	assert.Equal(t, "default", msg.AndroidSound)
	assert.Equal(t, jobNotice{NotificationType: TypeJobCancelled, JobID: 42}, msg.Data)
	assert.Equal(t, "Er arabiskatolk, 45min 2025-01-10 10:00:00, har avbokat tolkningen. Vi letar nu efter en ny tolk som kan ersätta denne. Tack.", msg.Contents["en"])
}

func TestPushSessionReminders_BothParties(t *testing.T) {
	h := newHarness(t, time.Date(2025, 1, 9, 12, 0, 0, 0, time.UTC))
	job := booking.Job{ID: 42, FromLanguageID: 5, Duration: 45, Due: time.Date(2025, 1, 10, 10, 0, 0, 0, time.UTC), CustomerPhoneType: true}

	require.NoError(t, h.service.PushSessionReminders(context.Background(), job,
		directory.User{Email: "customer@example.com"}, directory.User{Email: "tolk@example.com"}))
	require.Len(t, h.push.msgs, 2)
	assert.Equal(t, []string{"customer@example.com"}, addressed(h.push.msgs[0]))
	assert.Equal(t, []string{"tolk@example.com"}, addressed(h.push.msgs[1]))
	assert.Contains(t, h.push.msgs[0].Contents["en"], "(telefon)")
}
