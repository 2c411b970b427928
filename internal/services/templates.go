package services

import (
	"fmt"
	"html"
	"strings"
	"time"

	"contactgate/internal/domain"
)

const dateLayout = "02/01/2006 15:04"

func companyOrDash(rec *domain.ContactRecord) string {
	if rec.Company == nil || *rec.Company == "" {
		return "Não informado"
	}
	return *rec.Company
}

func ownerSubject(rec *domain.ContactRecord) string {
	return fmt.Sprintf("[Site] Nova mensagem de %s", rec.Name)
}

func ownerText(rec *domain.ContactRecord) string {
	return fmt.Sprintf(`Nova mensagem do formulário de contato

Nome: %s
Email: %s
Empresa: %s
Recebida em: %s

Mensagem:
%s

Contato #%d`, rec.Name, rec.Email, companyOrDash(rec), rec.CreatedAt.Format(dateLayout), rec.Message, rec.ID)
}

func ownerHTML(rec *domain.ContactRecord) string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html lang="pt-BR">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Nova mensagem do site</title>
</head>
<body style="font-family: 'Inter', -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #334155;">
    <div style="max-width: 600px; margin: 0 auto; padding: 20px;">
        <h2 style="color: #4f46e5;">Nova mensagem do formulário de contato</h2>

        <div style="background: #f1f5f9; padding: 20px; border-radius: 8px; margin: 20px 0;">
            <p><strong>Nome:</strong> %s</p>
            <p><strong>Email:</strong> <a href="mailto:%s">%s</a></p>
            <p><strong>Empresa:</strong> %s</p>
            <p><strong>Recebida em:</strong> %s</p>
        </div>

        <div style="background: #ffffff; padding: 20px; border-left: 4px solid #4f46e5; border-radius: 4px; margin: 20px 0;">
            <h3 style="color: #0a0e27; margin-top: 0;">Mensagem:</h3>
            <p style="white-space: pre-wrap;">%s</p>
        </div>

        <p style="color: #64748b; font-size: 14px;">Contato #%d</p>
    </div>
</body>
</html>`,
		html.EscapeString(rec.Name),
		html.EscapeString(rec.Email), html.EscapeString(rec.Email),
		html.EscapeString(companyOrDash(rec)),
		rec.CreatedAt.Format(dateLayout),
		html.EscapeString(rec.Message),
		rec.ID)
}

func confirmationSubject(senderName string) string {
	return "Recebi sua mensagem - " + senderName
}

func firstName(name string) string {
	if fields := strings.Fields(name); len(fields) > 0 {
		return fields[0]
	}
	return name
}

func confirmationText(rec *domain.ContactRecord, senderName string) string {
	return fmt.Sprintf(`Olá %s,

Recebi sua mensagem e agradeço o contato. Retornarei o mais breve possível, normalmente em até 48 horas úteis.

Sua mensagem:
%s

Atenciosamente,
%s

Enviado em %s`, firstName(rec.Name), rec.Message, senderName, rec.CreatedAt.Format(dateLayout))
}

func confirmationHTML(rec *domain.ContactRecord, senderName string) string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html lang="pt-BR">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Recebi sua mensagem</title>
</head>
<body style="font-family: 'Inter', -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #334155;">
    <div style="max-width: 600px; margin: 0 auto; padding: 20px;">
        <h2 style="color: #4f46e5;">Olá %s,</h2>
        <p>Recebi sua mensagem e agradeço o contato. Retornarei o mais breve possível, normalmente em até 48 horas úteis.</p>

        <div style="background: #f8fafc; border: 1px solid #e2e8f0; padding: 20px; margin: 24px 0; border-radius: 6px;">
            <h3 style="margin-top: 0;">Sua mensagem:</h3>
            <p style="white-space: pre-wrap;">%s</p>
        </div>

        <p>Atenciosamente,<br><strong>%s</strong></p>
        <p style="color: #64748b; font-size: 12px;">Enviado em %s</p>
    </div>
</body>
</html>`,
		html.EscapeString(firstName(rec.Name)),
		html.EscapeString(rec.Message),
		html.EscapeString(senderName),
		rec.CreatedAt.In(time.UTC).Format(dateLayout))
}
