// Package locale holds the user-facing strings of the booking core. Message
// keys are the English text; Swedish is the production locale.
package locale

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

// Message keys. Identifiers are passed as strings so the printer does not
// apply digit grouping to them.
const (
	CreateWrongRole   = "Translator can not create booking"
	CreatePastDue     = "Can't create booking in past"
	CreateFailed      = "Failed to create booking: %s"
	StoreEmailFailed  = "Failed to send Email: %s"
	AcceptBooked      = "You already have a booking at that time! The booking is not accepted."
	AcceptFailed      = "Could not accept the job."
	AcceptBookedAt    = "You already have a booking at %s. You did not get this assignment"
	AcceptTaken       = "This %s interpretation %d min %s has already been accepted by another interpreter. You did not get this assignment"
	AcceptConfirmed   = "You have now accepted and received the booking for %s interpreter %dmin %s"
	MailFailed        = "Error in sending email"
	CancelTooLate     = "You cannot cancel a booking that takes place within 24 hours. Please call %s and cancel by phone. Thank you!"
	JobMissing        = "Booking #%s was not found"
	FlaggedNeedsNote  = "An admin comment is required when flagging a booking"
	FieldRequired     = "You must fill in all fields"
	CancelNotAllowed  = "You cannot cancel this booking"
	SMSResendFailed   = "Failed to resend SMS notification: %s"
	TranslatorMissing = "No translator found for %s"
	UpdateConflict    = "The booking changed while you were editing it. Please try again."
	NotYourBooking    = "This booking does not belong to you"
	UserMissing       = "User #%s was not found"

	PushNewBooking       = "New booking for %s interpreter %d min %s"
	PushNewEmergency     = "New emergency booking for %s interpreter %d min"
	PushJobAccepted      = "Your booking for %s interpreters, %dmin, %s has been accepted by an interpreter. Please open the app to see details about the interpreter."
	PushCustomerCanceled = "The customer has cancelled the booking for %s interpreter, %dmin, %s. Please check your previous bookings for details."
	PushTranslatorLeft   = "Your %s interpreter, %dmin %s, has cancelled the interpretation. We are now looking for a new interpreter to replace them. Thank you."
	PushSessionReminder  = "Reminder: you have a %s interpretation (%s) at %s on %s, %d min. Booking #%s."
	ReminderPhone        = "phone"
	ReminderOnSite       = "on site"

	SMSPhysicalJob = "New on-site booking %s at %s (%s) in %s, booking #%s. Please answer in the app."
	SMSPhoneJob    = "New phone booking %s at %s (%s), booking #%s. Please answer in the app."

	SubjectAccepted          = "Confirmation - an interpreter has accepted your booking (booking # %s)"
	SubjectTranslatorChanged = "Notice of assignment of interpretation for assignment # %s)"
	SubjectBookingChanged    = "Notice of change of interpretation booking for assignment # %s"
	SubjectReopened          = "We have now reopened your booking of %s interpreter for booking #%s"
	SubjectSessionEnded      = "Information about completed interpretation for booking number #%s"
	SubjectReceived          = "We have received your interpretation booking. Booking no: #%s"

	ForTextInvoice = "invoice"
	ForTextPayout  = "payout"
)

var swedish = map[string]string{
	CreateWrongRole:   "Tolk kan inte skapa bokning",
	CreatePastDue:     "Kan inte skapa bokning bakåt i tiden",
	CreateFailed:      "Kunde inte skapa bokningen: %s",
	StoreEmailFailed:  "Kunde inte skicka e-post: %s",
	AcceptBooked:      "Du har redan en bokning den tiden! Bokningen är inte accepterad.",
	AcceptFailed:      "Bokningen kunde inte accepteras.",
	AcceptBookedAt:    "Du har redan en bokning den tiden %s. Du har inte fått denna tolkning",
	AcceptTaken:       "Denna %s tolkning %d min %s har redan accepterats av annan tolk. Du har inte fått denna tolkning",
	AcceptConfirmed:   "Du har nu accepterat och fått bokningen för %s tolk %dmin %s",
	MailFailed:        "Fel vid utskick av e-post",
	CancelTooLate:     "Du kan inte avboka en bokning som sker inom 24 timmar. Vänligen ring på %s och gör din avbokning över telefon. Tack!",
	JobMissing:        "Bokning #%s hittades inte",
	FlaggedNeedsNote:  "En adminkommentar krävs när en bokning flaggas",
	FieldRequired:     "Du måste fylla in alla fält",
	CancelNotAllowed:  "Du kan inte avboka denna bokning",
	SMSResendFailed:   "Kunde inte skicka om SMS-notifieringen: %s",
	TranslatorMissing: "Ingen tolk hittades för %s",
	UpdateConflict:    "Bokningen ändrades under tiden. Försök igen.",
	NotYourBooking:    "Denna bokning tillhör inte dig",
	UserMissing:       "Användare #%s hittades inte",

	PushNewBooking:       "Ny bokning för %s tolk %d min %s",
	PushNewEmergency:     "Ny akutbokning för %s tolk %d min",
	PushJobAccepted:      "Din bokning för %s tolk, %dmin, %s har accepterats av en tolk. Vänligen öppna appen för att se detaljer om tolken.",
	PushCustomerCanceled: "Kunden har avbokat bokningen för %stolk, %dmin, %s. Var god och kolla dina tidigare bokningar för detaljer.",
	PushTranslatorLeft:   "Er %stolk, %dmin %s, har avbokat tolkningen. Vi letar nu efter en ny tolk som kan ersätta denne. Tack.",
	PushSessionReminder:  "Påminnelse: du har en %stolkning (%s) kl %s den %s, %d min. Bokning #%s.",
	ReminderPhone:        "telefon",
	ReminderOnSite:       "på plats",

	SMSPhysicalJob: "Ny bokning för tolk på plats %s kl %s (%s) i %s, bokningsnr #%s. Vänligen svara i appen.",
	SMSPhoneJob:    "Ny bokning för telefontolkning %s kl %s (%s), bokningsnr #%s. Vänligen svara i appen.",

	SubjectAccepted:          "Bekräftelse - tolk har accepterat er bokning (bokning # %s)",
	SubjectTranslatorChanged: "Meddelande om tilldelning av tolkuppdrag för uppdrag # %s)",
	SubjectBookingChanged:    "Meddelande om ändring av tolkbokning för uppdrag # %s",
	SubjectReopened:          "Vi har nu återöppnat er bokning av %stolk för bokning #%s",
	SubjectSessionEnded:      "Information om avslutad tolkning för bokningsnummer #%s",
	SubjectReceived:          "Vi har mottagit er tolkbokning. Bokningsnr: #%s",

	ForTextInvoice: "faktura",
	ForTextPayout:  "lön",
}

var cat = build()

func build() catalog.Catalog {
	b := catalog.NewBuilder(catalog.Fallback(language.English))
	for key, text := range swedish {
		_ = b.SetString(language.Swedish, key, text)
		_ = b.SetString(language.English, key, key)
	}
	return b
}

// Printer returns a printer for the given locale tag. Unknown or empty tags
// fall back to Swedish.
func Printer(tag string) *message.Printer {
	lang := language.Swedish
	if tag != "" {
		if parsed, err := language.Parse(tag); err == nil {
			lang = parsed
		}
	}
	matcher := language.NewMatcher([]language.Tag{language.Swedish, language.English})
	matched, _, _ := matcher.Match(lang)
	return message.NewPrinter(matched, message.Catalog(cat))
}
