package models

// DisplayFields are the values written into the sidebar shell.
type DisplayFields struct {
	Ticker      string `json:"ticker"`
	LogoURL     string `json:"logoUrl"`
	LogoAlt     string `json:"logoAlt"`
	FullName    string `json:"fullName"`
	Rank        string `json:"rank"`
	RankLabel   string `json:"rankLabel"`
	Marketing   string `json:"marketing"`
	Description string `json:"description"`
	Price       string `json:"price,omitempty"` // last price, when quotes are enabled
}

// HasLogo reports whether the image element should be shown.
func (d DisplayFields) HasLogo() bool {
	return d.LogoURL != ""
}
