package timely

import "time"

type Event struct {
	ID      int64   `json:"id"`
	Day     string  `json:"day"`
	Note    string  `json:"note"`
	Project Project `json:"project"`
}

// ClientName returns the name of the event's client, or "" when the project has none.
func (e Event) ClientName() string {
	if e.Project.Client == nil {
		return ""
	}
	return e.Project.Client.Name
}

type Project struct {
	ID     int64   `json:"id"`
	Name   string  `json:"name"`
	Client *ProjectClient `json:"client"`
}

type ProjectClient struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Token holds an OAuth token for the Timely API.
type Token struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// IsExpired returns true if the token expires within 5 minutes. Tokens
// without an expiry never expire.
func (t *Token) IsExpired() bool {
	if t.ExpiresAt.IsZero() {
		return false
	}
	return time.Now().Add(5 * time.Minute).After(t.ExpiresAt)
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	Error        string `json:"error"`
	ErrorDesc    string `json:"error_description"`
}
