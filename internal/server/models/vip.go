package models

import "time"

// Gender codes stored in vips.gender.
const (
	GenderUnspecified = 0
	GenderMale        = 1
	GenderFemale      = 2
)

// VIP is a user's membership record; ID equals the owning user's ID. JSON
// names follow the membership system's established field names so
// existing clients keep working.
type VIP struct {
	ID                 int64     `json:"IDvip"`
	Code               string    `json:"code"`
	BirthDate          *Date     `json:"nascita"`
	Phone              string    `json:"cellulare"`
	SMSOptIn           bool      `json:"sms"`
	Points             int       `json:"Punti"`
	Discount           float64   `json:"Sconto"`
	FirstName          string    `json:"Nome"`
	LastName           string    `json:"cognome"`
	Email              string    `json:"Email"`
	Address            string    `json:"Indirizzo"`
	City               string    `json:"Citta"`
	Province           string    `json:"Prov"`
	PostalCode         string    `json:"Cap"`
	TaxCode            string    `json:"CodiceFiscale"`
	VATNumber          string    `json:"PartitaIva"`
	Gender             int       `json:"sesso"`
	MembershipYear     int       `json:"VIPanno"`
	ExpiresOn          *Date     `json:"VIPscadenza"`
	Blocked            bool      `json:"Blocco"`
	LastPurchaseAmount float64   `json:"P_importo"`
	LastPurchaseDate   *Date     `json:"P_ldata"`
	CreatedAt          time.Time `json:"idata"`
}
