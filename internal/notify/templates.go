package notify

import (
	"bytes"
	"html/template"
	"time"
)

const (
	ConfirmationSubject = "Your Codeverse Demo Session Ticket"
	CancellationSubject = "Codeverse Ticket Cancelled"

	VenueAddress = "Suman Tower, 3rd Floor, Above ICICI Bank, Adityapur 1, Jamshedpur – 831013"
	ContactPhone = "+91 74810 42783"
	SupportEmail = "support@codeverse.edu"
)

// Confirmation is the data rendered into the booking email.
type Confirmation struct {
	Name        string
	SessionDate time.Time
	CourseName  string
	TicketID    string
	TicketURL   string
	QRImage     template.URL // data: URL of the QR PNG
	QRPayload   string
}

type Cancellation struct {
	Name     string
	TicketID string
}

const layoutHead = `<!DOCTYPE html>
<html>
<head>
  <style>
    body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; }
    .header { background: linear-gradient(to right, #00b4d8, #0077b6); color: white; padding: 20px; text-align: center; border-radius: 5px 5px 0 0; }
    .content { padding: 20px; border: 1px solid #ddd; border-top: none; border-radius: 0 0 5px 5px; }
    .qr-code { text-align: center; margin: 20px 0; }
    .qr-code img { max-width: 200px; }
    .details { background-color: #f9f9f9; padding: 15px; border-radius: 5px; margin-bottom: 20px; }
    .footer { text-align: center; margin-top: 20px; font-size: 12px; color: #666; }
  </style>
</head>
<body>`

const layoutFoot = `
  <div class="footer">
    <p>&copy; {{.Year}} Codeverse. All rights reserved.</p>
    <p>This is an automated email, please do not reply.</p>
  </div>
</body>
</html>`

var confirmationTmpl = template.Must(template.New("confirmation").Parse(layoutHead + `
  <div class="header"><h1>Your Codeverse Demo Session Ticket</h1></div>
  <div class="content">
    <p>Hello {{.Name}},</p>
    <p>Thank you for booking a demo session with Codeverse! Your ticket has been confirmed.</p>
    <div class="details">
      <p><strong>Session Date:</strong> {{.Date}}</p>
      <p><strong>Course:</strong> {{.CourseName}}</p>
      <p><strong>Ticket ID:</strong> {{.TicketID}}</p>
      <p><strong>Status:</strong> Confirmed</p>
      <p><strong>Location:</strong> {{.Venue}}</p>
    </div>
    {{if .QRImage}}<div class="qr-code"><img src="{{.QRImage}}" alt="Ticket QR code"></div>{{end}}
    {{if .TicketURL}}<p>Your ticket: <a href="{{.TicketURL}}">{{.TicketURL}}</a></p>{{end}}
    <p>Please present the QR code when you arrive at our center.</p>
    <p>If you have any questions or need to reschedule, please contact us at {{.Phone}}</p>
  </div>` + layoutFoot))

var cancellationTmpl = template.Must(template.New("cancellation").Parse(layoutHead + `
  <div class="header"><h1>Codeverse Ticket Cancelled</h1></div>
  <div class="content">
    <p>Hello {{.Name}},</p>
    <p>Your ticket (ID: {{.TicketID}}) has been cancelled.</p>
    <p>If you believe this is an error or would like to book another session, please visit our website or contact us at {{.Support}}</p>
  </div>` + layoutFoot))

// FormatSessionDate renders a date the way it appears in emails.
func FormatSessionDate(t time.Time) string {
	return t.Format("Monday, January 2, 2006")
}

func ConfirmationMessage(to string, c Confirmation) (Message, error) {
	var buf bytes.Buffer
	err := confirmationTmpl.Execute(&buf, map[string]any{
		"Name":       c.Name,
		"Date":       FormatSessionDate(c.SessionDate),
		"CourseName": c.CourseName,
		"TicketID":   c.TicketID,
		"TicketURL":  c.TicketURL,
		"QRImage":    c.QRImage,
		"Venue":      template.HTML(VenueAddress),
		"Phone":      template.HTML(ContactPhone),
		"Year":       time.Now().Year(),
	})
	if err != nil {
		return Message{}, err
	}
	return Message{To: to, Subject: ConfirmationSubject, HTML: buf.String()}, nil
}

func CancellationMessage(to string, c Cancellation) (Message, error) {
	var buf bytes.Buffer
	err := cancellationTmpl.Execute(&buf, map[string]any{
		"Name":     c.Name,
		"TicketID": c.TicketID,
		"Support":  SupportEmail,
		"Year":     time.Now().Year(),
	})
	if err != nil {
		return Message{}, err
	}
	return Message{To: to, Subject: CancellationSubject, HTML: buf.String()}, nil
}
