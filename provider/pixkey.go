package provider

import "regexp"

var nonDigits = regexp.MustCompile(`[^0-9]`)

// OnlyDigits strips everything but digits from s.
func OnlyDigits(s string) string {
	return nonDigits.ReplaceAllString(s, "")
}

// NormalizePixKey converts a stored pix key + type pair into the internal
// form adapters expect. Document keys are stripped to digits and
// reclassified CPF (11 digits) or CNPJ by length; phone keys are stripped
// and gain the +55 country prefix; email and random keys pass through. The
// returned type is one of the PixKey* constants; each adapter translates it
// into its gateway's own vocabulary.
func NormalizePixKey(key, keyType string) (string, string) {
	switch keyType {
	case PixKeyDocument, PixKeyCPF, PixKeyCNPJ:
		key = OnlyDigits(key)
		if len(key) == 11 {
			return key, PixKeyCPF
		}
		return key, PixKeyCNPJ
	case PixKeyPhone, "phone":
		return "+55" + OnlyDigits(key), PixKeyPhone
	case PixKeyEmail:
		return key, PixKeyEmail
	case PixKeyRandom, "random":
		return key, PixKeyRandom
	}
	return key, keyType
}
