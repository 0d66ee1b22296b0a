package ledger

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/imimarket/imimarket-backend/pkg/enums"
)

// Currency slots keep the derivation stable for the denominations accounts
// are seeded with; new currencies fall back to slot 0.
var currencySlots = map[enums.Currency]int{
	enums.CurrencyRUB: 0,
	enums.CurrencyIMI: 1,
}

// DeriveCardNumber produces the deterministic virtual card number for a
// balance row. It is a display and lookup convenience, not a security
// boundary: a 32-bit overflowing string hash of "userId-currency-slot",
// absolute value, left-padded to 12 digits, rendered "0000 XXXX XXXX XXXX".
func DeriveCardNumber(userID uuid.UUID, currency enums.Currency) string {
	seed := fmt.Sprintf("%s-%s-%d", userID, currency, currencySlots[currency])

	var hash int32
	for _, ch := range seed {
		hash = (hash << 5) - hash + int32(ch)
	}

	abs := int64(hash)
	if abs < 0 {
		abs = -abs
	}

	digits := fmt.Sprintf("%012d", abs)
	digits = digits[len(digits)-12:]
	return fmt.Sprintf("0000 %s %s %s", digits[0:4], digits[4:8], digits[8:12])
}

// NormalizeCardNumber canonicalizes user-supplied card input so lookups match
// the stored "0000 XXXX XXXX XXXX" form.
func NormalizeCardNumber(raw string) string {
	compact := strings.ReplaceAll(strings.TrimSpace(raw), " ", "")
	if len(compact) != 16 {
		return strings.TrimSpace(raw)
	}
	return fmt.Sprintf("%s %s %s %s", compact[0:4], compact[4:8], compact[8:12], compact[12:16])
}
