package models

// VIP is the subset of membership fields the CLI sends and shows. JSON keys
// follow the server's wire names.
type VIP struct {
	ID        int64   `json:"IDvip,omitempty"`
	Code      string  `json:"code"`
	Phone     string  `json:"cellulare"`
	SMSOptIn  bool    `json:"sms"`
	Points    int     `json:"Punti"`
	Discount  float64 `json:"Sconto"`
	FirstName string  `json:"Nome"`
	LastName  string  `json:"cognome"`
	Email     string  `json:"Email"`
	City      string  `json:"Citta"`
	ExpiresOn *string `json:"VIPscadenza,omitempty"`
	Blocked   bool    `json:"Blocco"`
}

// Dashboard is the payload of GET /api/dashboard.
type Dashboard struct {
	Username string `json:"username"`
	VIP      *VIP   `json:"vip"`
}

// Session is an issued access token.
type Session struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// PresignedURL is a time-limited link to the member's barcode image.
type PresignedURL struct {
	URL       string `json:"url"`
	ExpiresIn int64  `json:"expires_in"`
}
