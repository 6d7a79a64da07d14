// ABOUTME: Renders dynamic screens: menus, project lists, progress bars, history, recaps
// ABOUTME: Pure string builders over backend and schedule values

package format

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/2389/afrik-gateway/internal/backend"
	"github.com/2389/afrik-gateway/internal/schedule"
)

const (
	barWidth        = 10
	historyLimit    = 10
	recapHeadTail   = 3
	recapMaxEntries = 6
)

// MainMenu greets an authenticated user.
func MainMenu(u backend.User) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*Menu Afrikmoney*\n\nBonjour *%s %s* !\n\n", u.Nom, u.Prenom)
	b.WriteString("1. Mes Projets & Stats\n")
	b.WriteString("2. Payer un Marchand\n")
	b.WriteString("3. Mon Historique\n")
	b.WriteString("4. Mon Profil\n")
	b.WriteString("5. Créer un Projet\n")
	b.WriteString("6. Aide & Support\n\n")
	b.WriteString("Tapez le numéro de votre choix.")
	return b.String()
}

// ProgressBar draws a fixed-width block bar for pct in [0, 100].
func ProgressBar(pct float64) string {
	filled := int(math.Round(pct / 100 * barWidth))
	filled = max(0, min(barWidth, filled))
	return "[" + strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled) + "]"
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

// ProjectsList renders the numbered project overview.
func ProjectsList(projects []backend.Project) string {
	if len(projects) == 0 {
		return "Vos Projets :\n\nVous n'avez aucun projet pour le moment.\n\n" +
			"Les projets vous permettent de creer des plans de paiement automatiques.\n\n" +
			"Tapez 5 pour creer votre premier projet !"
	}

	var b strings.Builder
	b.WriteString("Vos Projets :\n\n")
	for i, p := range projects {
		pct := p.Progress()
		fmt.Fprintf(&b, "%d. %s\n", i+1, p.Name)
		fmt.Fprintf(&b, "   %s %.0f%%\n", ProgressBar(pct), pct)
		fmt.Fprintf(&b, "   Montant: %d / %d FCFA\n", p.CurrentAmount, p.TargetAmount)
		fmt.Fprintf(&b, "   Echeance: %s\n\n", orNA(p.NextPayment))
	}
	b.WriteString("Tapez le numéro pour les détails ou 0 pour quitter")
	return b.String()
}

// ProjectDetails renders one project's progress and its options.
func ProjectDetails(p backend.Project) string {
	pct := p.Progress()

	var b strings.Builder
	fmt.Fprintf(&b, "*%s*\n\n", p.Name)
	if p.MerchantName != "" {
		fmt.Fprintf(&b, "Marchand : %s\n", p.MerchantName)
	}
	if p.Frequency != "" {
		fmt.Fprintf(&b, "Fréquence : %s\n", schedule.Frequency(p.Frequency).Label())
	}
	fmt.Fprintf(&b, "Progression : %s %.0f%%\n", ProgressBar(pct), pct)
	fmt.Fprintf(&b, "Montant : %d / %d FCFA\n", p.CurrentAmount, p.TargetAmount)

	if p.Funded() {
		b.WriteString("\n🎉 Objectif atteint !\n\n")
		b.WriteString("Tapez 0 pour revenir au menu principal.")
		return b.String()
	}

	if p.DueAmount() < 1 {
		b.WriteString("\nAucune échéance à payer.\n\n")
		b.WriteString("0. Revenir au menu principal")
		return b.String()
	}

	fmt.Fprintf(&b, "Prochaine échéance : %d FCFA le %s\n\n", p.DueAmount(), orNA(p.NextPayment))
	fmt.Fprintf(&b, "1. Payer la prochaine échéance (%d FCFA)\n", p.DueAmount())
	b.WriteString("0. Revenir au menu principal")
	return b.String()
}

// SupportMenu lists the support options.
func SupportMenu() string {
	var b strings.Builder
	b.WriteString("Centre d'Assistance Afrikmoney\n\n")
	b.WriteString("Comment pouvons-nous vous aider ?\n\n")
	b.WriteString("1-*FAQ* : Questions Frequentes\n")
	b.WriteString("2-*Contact* : Parler a un conseiller\n")
	b.WriteString("3-*Plainte* : Signaler un probleme\n\n")
	b.WriteString("Liens Rapides :\n")
	b.WriteString("- Guide : https://afrikmoney.com/guide\n")
	b.WriteString("- Tarifs : https://afrikmoney.com/tarifs\n\n")
	b.WriteString("Répondez avec le numéro correspondant ou *0* pour revenir.")
	return b.String()
}

var historyLayouts = []string{time.RFC3339Nano, "2006-01-02 15:04:05", "2006-01-02T15:04:05", schedule.DateLayout}

// shortDate renders a backend timestamp as dd/mm/yyyy, or as-is when unparsable.
func shortDate(raw string) string {
	for _, layout := range historyLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.Format("02/01/2006")
		}
	}
	return raw
}

// History renders the most recent transactions.
func History(txs []backend.Transaction) string {
	if len(txs) == 0 {
		return "Historique des Paiements :\n\nAucune transaction trouvée."
	}

	var b strings.Builder
	b.WriteString("Vos 10 dernieres transactions :\n\n")
	for i, tx := range txs[:min(len(txs), historyLimit)] {
		note := tx.Note
		if note == "" {
			note = "Paiement Marchand"
		}
		fmt.Fprintf(&b, "%d. [%s] %d FCFA\n", i+1, shortDate(tx.CreatedAt), tx.Amount)
		fmt.Fprintf(&b, "   Lieu: %s\n", note)
		fmt.Fprintf(&b, "   Statut: %s\n\n", tx.Status)
	}
	b.WriteString("\nTapez 0 pour revenir au menu principal")
	return b.String()
}

func linked(num string) string {
	if num == "" {
		return "Non lié"
	}
	return num
}

// Profile renders the account details.
func Profile(u backend.User) string {
	var b strings.Builder
	b.WriteString("*Votre Profil*\n\n")
	fmt.Fprintf(&b, "Nom: %s\n", u.Nom)
	fmt.Fprintf(&b, "Prénom: %s\n", u.Prenom)
	fmt.Fprintf(&b, "Tel: %s\n", u.Telephone)
	fmt.Fprintf(&b, "MTN: %s\n", linked(u.NumMTN))
	fmt.Fprintf(&b, "Moov: %s\n", linked(u.NumMoov))
	fmt.Fprintf(&b, "Celtiis: %s\n\n", linked(u.NumCeltiis))
	b.WriteString("Tapez 0 pour revenir.")
	return b.String()
}

// PaymentRecap summarizes a merchant payment before confirmation.
func PaymentRecap(merchantName, merchantCode, object string, amount int64, source string) string {
	var b strings.Builder
	b.WriteString("*Récapitulatif du Paiement*\n\n")
	fmt.Fprintf(&b, "Marchand : %s (%s)\n", merchantName, merchantCode)
	fmt.Fprintf(&b, "Objet : %s\n", object)
	fmt.Fprintf(&b, "Montant : %d FCFA\n", amount)
	fmt.Fprintf(&b, "Source : %s\n\n", source)
	b.WriteString("Tapez *1* pour CONFIRMER\n")
	b.WriteString("Tapez *0* pour ANNULER")
	return b.String()
}

// ServicesList asks the user to pick one of the merchant's services.
func ServicesList(merchantName string, services []backend.Service) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Marchand : *%s*.\n\nChoisissez le service :\n", merchantName)
	for i, s := range services {
		fmt.Fprintf(&b, "%d. %s\n", i+1, s.Name)
	}
	b.WriteString("\nTapez le numéro du service.")
	return b.String()
}

// ScheduleLines renders a plan, eliding the middle of long plans.
func ScheduleLines(plan []schedule.Installment) []string {
	line := func(i int) string {
		return fmt.Sprintf("%d. %s : %d FCFA", i+1, plan[i].Date, plan[i].Amount)
	}

	var lines []string
	if len(plan) <= recapMaxEntries {
		for i := range plan {
			lines = append(lines, line(i))
		}
		return lines
	}
	for i := 0; i < recapHeadTail; i++ {
		lines = append(lines, line(i))
	}
	lines = append(lines, "...")
	for i := len(plan) - recapHeadTail; i < len(plan); i++ {
		lines = append(lines, line(i))
	}
	return lines
}

// ProjectRecap summarizes a project and its schedule before confirmation.
func ProjectRecap(name, merchantName string, target, installment int64, f schedule.Frequency, plan []schedule.Installment) string {
	var b strings.Builder
	b.WriteString("*Récapitulatif du Projet*\n\n")
	fmt.Fprintf(&b, "Projet : %s\n", name)
	fmt.Fprintf(&b, "Marchand : %s\n", merchantName)
	fmt.Fprintf(&b, "Montant cible : %d FCFA\n", target)
	fmt.Fprintf(&b, "Échéance : %d FCFA (%s)\n", installment, f.Label())
	fmt.Fprintf(&b, "Nombre d'échéances : %d\n", len(plan))
	fmt.Fprintf(&b, "Date de fin : %s\n\n", schedule.EndDate(plan))
	b.WriteString("*Calendrier*\n")
	for _, l := range ScheduleLines(plan) {
		b.WriteString(l)
		b.WriteString("\n")
	}
	b.WriteString("\nTapez *1* pour CONFIRMER\n")
	b.WriteString("Tapez *0* pour ANNULER")
	return b.String()
}
