package fieldmap

import (
	"regexp"
	"sort"
	"strings"
)

// LinksValue is the structured link shape the Twenty API expects.
type LinksValue struct {
	PrimaryLinkURL   string      `json:"primaryLinkUrl"`
	PrimaryLinkLabel string      `json:"primaryLinkLabel"`
	SecondaryLinks   []LinkValue `json:"secondaryLinks"`
}

type LinkValue struct {
	URL   string `json:"url"`
	Label string `json:"label"`
}

func (v LinksValue) String() string { return v.PrimaryLinkURL }

type EmailsValue struct {
	PrimaryEmail     string   `json:"primaryEmail"`
	AdditionalEmails []string `json:"additionalEmails"`
}

func (v EmailsValue) String() string { return v.PrimaryEmail }

type PhonesValue struct {
	PrimaryPhoneNumber      string       `json:"primaryPhoneNumber"`
	PrimaryPhoneCallingCode string       `json:"primaryPhoneCallingCode"`
	PrimaryPhoneCountryCode string       `json:"primaryPhoneCountryCode"`
	AdditionalPhones        []PhoneValue `json:"additionalPhones"`
}

type PhoneValue struct {
	Number      string `json:"number"`
	CallingCode string `json:"callingCode"`
	CountryCode string `json:"countryCode"`
}

func (v PhonesValue) String() string {
	return strings.TrimSpace(v.PrimaryPhoneCallingCode + " " + v.PrimaryPhoneNumber)
}

// Numbers without an international prefix are assumed to be Austrian.
const (
	DefaultCallingCode = "+43"
	DefaultCountryCode = "AT"
)

var callingCodes = func() []struct{ prefix, country string } {
	codes := []struct{ prefix, country string }{
		{"+43", "AT"},
		{"+49", "DE"},
		{"+41", "CH"},
		{"+33", "FR"},
		{"+39", "IT"},
		{"+44", "GB"},
		{"+1", "US"},
		{"+34", "ES"},
		{"+31", "NL"},
		{"+32", "BE"},
		{"+48", "PL"},
		{"+420", "CZ"},
	}
	// longest prefix wins: +420 before +4x
	sort.SliceStable(codes, func(i, j int) bool { return len(codes[i].prefix) > len(codes[j].prefix) })
	return codes
}()

var genericCallingCode = regexp.MustCompile(`^\+(\d{1,3})`)

var phoneNoise = strings.NewReplacer(" ", "", "-", "", "(", "", ")", "", "/", "", ".", "")

// ParsePhone splits a free-form phone number into calling code, country and
// national number. Unknown prefixes keep an empty country code.
func ParsePhone(raw string) PhonesValue {
	clean := phoneNoise.Replace(strings.TrimSpace(raw))

	out := PhonesValue{
		PrimaryPhoneNumber:      clean,
		PrimaryPhoneCallingCode: DefaultCallingCode,
		PrimaryPhoneCountryCode: DefaultCountryCode,
		AdditionalPhones:        []PhoneValue{},
	}
	if !strings.HasPrefix(clean, "+") {
		return out
	}

	for _, c := range callingCodes {
		if strings.HasPrefix(clean, c.prefix) {
			out.PrimaryPhoneCallingCode = c.prefix
			out.PrimaryPhoneCountryCode = c.country
			out.PrimaryPhoneNumber = clean[len(c.prefix):]
			return out
		}
	}

	if m := genericCallingCode.FindStringSubmatch(clean); m != nil {
		out.PrimaryPhoneCallingCode = "+" + m[1]
		out.PrimaryPhoneCountryCode = ""
		out.PrimaryPhoneNumber = clean[len(m[0]):]
	}
	return out
}
