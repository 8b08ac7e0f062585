package greenbutton

// tokenResponse is the JSON body of the OAuth token endpoint. The
// provider uses client_access_token rather than the standard
// access_token field.
type tokenResponse struct {
	ClientAccessToken string `json:"client_access_token"`
	TokenType         string `json:"token_type"`
	ExpiresIn         int64  `json:"expires_in"`
	Error             string `json:"error"`
	ErrorDescription  string `json:"error_description"`
}

// Reading is one flattened interval reading. Optional fields are nil
// when the payload omits the element. Start stays epoch-seconds text
// until the transform stage converts it.
type Reading struct {
	UsagePoint     *string
	ReadingQuality *string
	Duration       *string
	Start          *string
	Value          *string
	TOU            *string
	Unit           string
}

// Row flattens the reading into the raw keyed form the ingestion table
// decodes from.
func (r Reading) Row() map[string]*string {
	unit := r.Unit
	return map[string]*string{
		"usage_point":     r.UsagePoint,
		"reading_quality": r.ReadingQuality,
		"duration":        r.Duration,
		"start":           r.Start,
		"value":           r.Value,
		"tou":             r.TOU,
		"unit":            &unit,
	}
}
