package mailer

import "fmt"

func operatorMessage(sub Submission, to string) Message {
	phone := sub.Phone
	if phone == "" {
		phone = "not provided"
	}
	text := fmt.Sprintf(
		"New contact form submission\n\nName: %s\nEmail: %s\nPhone: %s\nSubject: %s\n\n%s\n",
		sub.Name, sub.Email, phone, sub.Subject, sub.Message)
	html := fmt.Sprintf(`<h2>New contact form submission</h2>
<table>
<tr><td><strong>Name</strong></td><td>%s</td></tr>
<tr><td><strong>Email</strong></td><td>%s</td></tr>
<tr><td><strong>Phone</strong></td><td>%s</td></tr>
<tr><td><strong>Subject</strong></td><td>%s</td></tr>
</table>
<p>%s</p>`,
		sub.Name, sub.Email, phone, sub.Subject, sub.Message)
	return Message{
		To:       to,
		ReplyTo:  sub.Email,
		Subject:  "Contact form: " + sub.Subject,
		TextBody: text,
		HTMLBody: html,
	}
}

func confirmationMessage(sub Submission, siteName string) Message {
	text := fmt.Sprintf(
		"Hi %s,\n\nThanks for getting in touch. We received your message and will reply as soon as we can.\n\nYour message:\n%s\n\n%s\n",
		sub.Name, sub.Message, siteName)
	html := fmt.Sprintf(`<p>Hi %s,</p>
<p>Thanks for getting in touch. We received your message and will reply as soon as we can.</p>
<blockquote>%s</blockquote>
<p>%s</p>`,
		sub.Name, sub.Message, siteName)
	return Message{
		To:       sub.Email,
		Subject:  "We received your message",
		TextBody: text,
		HTMLBody: html,
	}
}
