// ABOUTME: Static French prompts and notices sent by the dialogue engine
// ABOUTME: Disclaimer, welcome, registration, payment, project, and support texts

package format

// Disclaimer is shown until the user accepts the terms.
const Disclaimer = `*INFORMATION IMPORTANTE*

*Confidentialité :* Vos données sont traitées de manière sécurisée et confidentielle conformément aux lois en vigueur.

*Conditions :* En utilisant ce bot, vous acceptez nos *Conditions Générales d'Utilisation (CGU)* et notre politique de confidentialité.

Tapez *1* pour accepter et continuer, ou *0* pour quitter.`

// Welcome is shown to users who accepted the terms but have no account.
const Welcome = "*Bienvenue sur Afrikmoney Bot !*\n\n" +
	"Votre assistant whatsapp pour gérer vos projets de paiement et payer vos marchands en toute simplicité.\n\n" +
	"1- M'inscrire\n\n" +
	"Tapez *1* pour commencer."

// Contact card sent on first contact.
const (
	ContactName   = "Afrikmoney"
	ContactPrompt = "Enregistrez mon contact pour ne rien manquer !"
	ContactVCard  = "BEGIN:VCARD\n" +
		"VERSION:3.0\n" +
		"FN:Afrikmoney\n" +
		"ORG:Afrikmoney;\n" +
		"TEL;type=CELL;type=VOICE;waid=22951248454:+229 51 24 84 54\n" +
		"END:VCARD"
)

const (
	Farewell         = "Session terminée. Merci."
	DisclaimerRepeat = "Veuillez taper *1* pour accepter ou *0* pour quitter."
	GenericError     = "Une erreur est survenue. Réessayez plus tard."
	InvalidChoice    = "Choix invalide."
)

// Registration prompts.
const (
	RegistrationStart    = "*Inscription Afrikmoney*\n\nQuel est votre *NOM* ? (ou 0 pour annuler)"
	AskPrenom            = "Quel est votre *PRÉNOM* ?"
	AskTelephone         = "Entrez votre *NUMÉRO DE TÉLÉPHONE* (Commencez par 229, ex: 2290197XXXXXX) :"
	InvalidTelephone     = "Numéro invalide. Il doit commencer par 229 et avoir au moins 11 chiffres. Réessayez :"
	TelephoneTaken       = "Ce numéro est déjà enregistré."
	AskWhatsapp          = "Entrez votre *NUMÉRO WHATSAPP* (Commencez par 229, ex: 2290197XXXXXX) :"
	InvalidWhatsapp      = "Numéro WhatsApp invalide. Réessayez :"
	AskMTN               = "Entrez votre numéro de paiement *MTN* (ou 0 si aucun) :"
	AskMoov              = "Entrez votre numéro de paiement *MOOV* (ou 0 si aucun) :"
	AskCeltiis           = "Entrez votre numéro de paiement *CELTIIS* (ou 0 si aucun) :"
	RegistrationFailedFm = "Erreur lors de l'inscription: %s. Réessayez."
	RegistrationOKFm     = "Inscription réussie, %s !"
)

// Merchant payment prompts.
const (
	PaymentStart         = "*Paiement Marchand*\n\nEntrez le CODE du marchand :"
	InvalidMerchant      = "Code marchand invalide. Veuillez réessayer :"
	MerchantValidFm      = "Code valide : *%s*.\n\nQuel est l'OBJET du paiement ?"
	AskAmount            = "Quel est le MONTANT à payer (FCFA) ?"
	InvalidAmount        = "Montant invalide. Veuillez entrer un montant minimum de 1 FCFA."
	AskSource            = "Choisissez l'opérateur mobile pour le paiement :\n1. MTN\n2. Moov\n3. Celtiis"
	NoMerchantPhone      = "Erreur: Aucun numéro de paiement associé à ce marchand."
	PaymentProcessing    = "⏳ Initiation du paiement en cours... Veuillez patienter."
	PaymentPending       = "⏳ Un paiement est déjà en cours de validation. Veuillez patienter."
	PaymentValidateFm    = "Veuillez valider le paiement de %d FCFA sur votre téléphone (%s).\n\nEn attente de validation..."
	PaymentInitFailedFm  = "❌ Échec de l'initiation du paiement. %s"
	PaymentSucceededFm   = "✅ Paiement validé et transféré à %s !"
	PaymentFailed        = "❌ Le paiement a échoué via MoMo."
	PaymentTimedOut      = "❌ Délai d'attente dépassé. Le paiement n'a pas été confirmé."
	RetryHint            = "\n\nTapez *1* pour réessayer ou *0* pour annuler."
	SettlementFailedFm   = "⚠️ Paiement reçu, mais le transfert vers %s a échoué. Notre équipe va régulariser."
	InstallmentPaymentFm = "*Paiement d'échéance*\n\nProjet : *%s*\nMarchand : *%s*\nMontant : %d FCFA\n\n"
)

// Project creation prompts.
const (
	ProjectStart      = "*Nouveau Projet*\n\nVeuillez entrer le *Code Marchand* de l'entreprise où vous souhaitez souscrire :"
	ProjectMerchantFm = "Marchand : *%s*.\n\nQuel est le *NOM* de votre projet ?"
	AskProjectTarget  = "Quel est le *MONTANT CIBLE* (FCFA) ?"
	InvalidTarget     = "Veuillez entrer un montant valide."
	AskFrequency      = "Choisissez la fréquence de paiement :\n1. Quotidien\n2. Hebdomadaire\n3. Mensuel\n4. Annuel"
	AskInstallment    = "Quel est le *MONTANT DE CHAQUE ÉCHÉANCE* (FCFA) ?"
	InvalidService    = "Service invalide. Tapez le numéro du service :"
	InstallmentTooBig = "Le montant de l'échéance ne peut pas dépasser le montant cible. Réessayez :"
	InstallmentManyFm = "Ce plan compterait plus de %d échéances. Entrez un montant d'échéance plus élevé :"
	ProjectCreatedFm  = "Projet *%s* créé avec succès !"
	ProjectFailed     = "Échec de la création du projet."
)

// Lists and lookups.
const (
	ProjectsUnavailable = "Impossible de récupérer vos projets pour le moment."
	HistoryUnavailable  = "Impossible de récupérer votre historique."
	InvalidProject      = "Numéro de projet invalide. Tapez le numéro affiché ou 0 pour quitter."
	ProjectMerchantDown = "Impossible de joindre le marchand de ce projet pour le moment. Réessayez plus tard."
	ProjectNothingDue   = "Aucune échéance à payer pour ce projet. Tapez 0 pour revenir au menu principal."
)

// Support answers.
const (
	SupportFAQ = "*FAQ Afrikmoney*\n\n" +
		"- Q: Comment payer un marchand ?\n- R: Utilisez l'option 2 du menu principal.\n\n" +
		"- Q: Puis-je retirer mon argent ?\n- R: Oui, via vos comptes liés MTN/Moov."
	SupportContact   = "*Contact Sponsor*\n\nNotre équipe est disponible au 229XXXXXXXX ou par email à support@afrikmoney.com"
	SupportComplaint = "*Déposer une plainte*\n\nVeuillez décrire votre problème ici. Un conseiller vous recontactera."
)
