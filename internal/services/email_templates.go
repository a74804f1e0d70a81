package services

import (
	"html/template"

	"bookstore_back_end/internal/models"
)

var confirmationTmpl = template.Must(template.New("confirmation").Parse(`<!DOCTYPE html>
<html lang="fr">
<head><meta charset="UTF-8"><title>Confirmation de commande</title></head>
<body style="font-family: Arial, sans-serif; background-color: #f9f9f9; padding: 20px;">
	<div style="max-width: 600px; margin: auto; background-color: white; padding: 20px; border-radius: 10px;">
		<h2 style="color: #333;">Confirmation de votre commande</h2>
		<p>Bonjour {{.Name}},</p>
		<p>Votre commande a été confirmée avec succès. Chaque ligne est accompagnée d'un QR code en pièce jointe.</p>
		<table style="width: 100%; border-collapse: collapse; margin: 20px 0;">
			<thead>
				<tr style="background-color: #f0f0f0;">
					<th style="padding: 10px; text-align: left; border: 1px solid #ddd;">Commande</th>
					<th style="padding: 10px; text-align: left; border: 1px solid #ddd;">Livre</th>
					<th style="padding: 10px; text-align: left; border: 1px solid #ddd;">Quantité</th>
					<th style="padding: 10px; text-align: left; border: 1px solid #ddd;">Prix unitaire</th>
					<th style="padding: 10px; text-align: left; border: 1px solid #ddd;">Total</th>
				</tr>
			</thead>
			<tbody>
			{{range .Lines}}
				<tr>
					<td style="padding: 10px; border: 1px solid #ddd;">{{.Ref}}</td>
					<td style="padding: 10px; border: 1px solid #ddd;">{{.Title}}</td>
					<td style="padding: 10px; border: 1px solid #ddd;">{{.Quantity}}</td>
					<td style="padding: 10px; border: 1px solid #ddd;">{{.UnitPrice}}</td>
					<td style="padding: 10px; border: 1px solid #ddd;">{{.Total}}</td>
				</tr>
			{{end}}
			</tbody>
			<tfoot>
				<tr>
					<td colspan="4" style="padding: 10px; text-align: right; font-weight: bold;">Total:</td>
					<td style="padding: 10px; font-weight: bold;">{{.Total}}</td>
				</tr>
			</tfoot>
		</table>
		<p style="margin-top: 30px; color: #555;">Cordialement,<br><strong>L'équipe Bookstore</strong></p>
	</div>
</body>
</html>`))

var statusTmpl = template.Must(template.New("status").Parse(`<!DOCTYPE html>
<html lang="fr">
<head><meta charset="UTF-8"><title>Mise à jour de commande</title></head>
<body style="font-family: Arial, sans-serif; background-color: #f5f5f5; padding: 20px;">
	<div style="max-width: 600px; margin: auto; background-color: white; padding: 20px; border-radius: 12px;">
		<h2 style="color: {{.Color}};">{{.Message}}</h2>
		<p>Bonjour {{.Name}},</p>
		<p>Commande <strong>{{.Ref}}</strong> ({{.Quantity}} exemplaire(s)) : statut <strong>{{.Status}}</strong>.</p>
		<p style="margin-top: 30px; color: #555;">Cordialement,<br><strong>L'équipe Bookstore</strong></p>
	</div>
</body>
</html>`))

type confirmationLine struct {
	Ref       string
	Title     string
	Quantity  int
	UnitPrice string
	Total     string
}

type confirmationData struct {
	Name  string
	Lines []confirmationLine
	Total string
}

type statusData struct {
	Name     string
	Ref      string
	Quantity int
	Status   models.OrderStatus
	Message  string
	Color    string
}

func statusSubject(status models.OrderStatus) string {
	switch status {
	case models.OrderShipped:
		return "📦 Votre commande a été expédiée - Bookstore"
	case models.OrderDelivered:
		return "🎉 Votre commande a été livrée - Bookstore"
	default:
		return "📋 Mise à jour de votre commande - Bookstore"
	}
}

func statusMessage(status models.OrderStatus) (string, string) {
	switch status {
	case models.OrderShipped:
		return "Votre commande est en route", "#2563eb"
	case models.OrderDelivered:
		return "Votre commande a été livrée", "#16a34a"
	default:
		return "Votre commande est en préparation", "#6b7280"
	}
}
