package domain

import "strings"

// Country describes a supported dialing region together with the mobile
// operators known to serve it.
type Country struct {
	Code     string   `json:"code" mapstructure:"code" validate:"required,startswith=+"`
	Name     string   `json:"name" mapstructure:"name" validate:"required"`
	Flag     string   `json:"flag" mapstructure:"flag"`
	Networks []string `json:"networks" mapstructure:"networks" validate:"min=1"`
}

// DefaultCountries returns the built-in catalog of supported dialing regions.
func DefaultCountries() []Country {
	return []Country{
		{Code: "+27", Name: "South Africa", Flag: "🇿🇦", Networks: []string{"Vodacom", "MTN", "Cell C", "Telkom"}},
		{Code: "+260", Name: "Zambia", Flag: "🇿🇲", Networks: []string{"MTN", "Airtel", "Zamtel"}},
		{Code: "+258", Name: "Mozambique", Flag: "🇲🇿", Networks: []string{"Vodacom", "Movitel", "TMcel"}},
		{Code: "+254", Name: "Kenya", Flag: "🇰🇪", Networks: []string{"Safaricom", "Airtel", "Telkom"}},
		{Code: "+233", Name: "Ghana", Flag: "🇬🇭", Networks: []string{"MTN", "Vodafone", "AirtelTigo"}},
		{Code: "+264", Name: "Namibia", Flag: "🇳🇦", Networks: []string{"MTC", "TN Mobile"}},
		{Code: "+243", Name: "DR Congo", Flag: "🇨🇩", Networks: []string{"Vodacom", "Airtel", "Orange", "Africell"}},
		{Code: "+263", Name: "Zimbabwe", Flag: "🇿🇼", Networks: []string{"Econet", "NetOne", "Telecel"}},
		{Code: "+265", Name: "Malawi", Flag: "🇲🇼", Networks: []string{"TNM", "Airtel"}},
		{Code: "+267", Name: "Botswana", Flag: "🇧🇼", Networks: []string{"Mascom", "Orange", "BTC Mobile"}},
		{Code: "+268", Name: "Eswatini", Flag: "🇸🇿", Networks: []string{"MTN", "Swazi Mobile"}},
		{Code: "+255", Name: "Tanzania", Flag: "🇹🇿", Networks: []string{"Vodacom", "Airtel", "Tigo", "Halotel"}},
	}
}

// CountryByPrefix returns the first country whose dialing code prefixes phone.
func CountryByPrefix(countries []Country, phone string) (Country, bool) {
	for _, c := range countries {
		if strings.HasPrefix(phone, c.Code) {
			return c, true
		}
	}

	return Country{}, false
}

// CountryByCode returns the country with the exact dialing code.
func CountryByCode(countries []Country, code string) (Country, bool) {
	for _, c := range countries {
		if c.Code == code {
			return c, true
		}
	}

	return Country{}, false
}
