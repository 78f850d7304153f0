// internal/models/zipcode.go
package models

type ZipcodeRecord struct {
	ID             string `json:"id"`
	ZipCode        string `json:"zipCode"`
	StateID        string `json:"stateId"`
	StateName      string `json:"stateName"`
	City           string `json:"city,omitempty"`
	CountyFips     string `json:"countyFips"`
	CountyName     string `json:"countyName"`
	CountyNamesAll string `json:"countyNamesAll"`
	CountyFipsAll  string `json:"countyFipsAll"`
}

type ZipcodeSuggestion struct {
	ID        string `json:"id"`
	ZipCode   string `json:"zipCode"`
	City      string `json:"city"`
	StateID   string `json:"stateId"`
	StateName string `json:"stateName"`
}

// CountyOption is one county a zip code spans.
type CountyOption struct {
	Fips string `json:"fips"`
	Name string `json:"name"`
}
