package enums

import "fmt"

// NotificationCategory maps to the notification_category enum in Postgres.
type NotificationCategory string

const (
	NotificationCategoryWallet       NotificationCategory = "wallet"
	NotificationCategoryMLM          NotificationCategory = "mlm"
	NotificationCategoryOrder        NotificationCategory = "order"
	NotificationCategoryVerification NotificationCategory = "verification"
	NotificationCategorySystem       NotificationCategory = "system"
)

var validNotificationCategories = []NotificationCategory{
	NotificationCategoryWallet,
	NotificationCategoryMLM,
	NotificationCategoryOrder,
	NotificationCategoryVerification,
	NotificationCategorySystem,
}

// IsValid checks whether the given category matches the canonical enum.
func (n NotificationCategory) IsValid() bool {
	for _, candidate := range validNotificationCategories {
		if candidate == n {
			return true
		}
	}
	return false
}

// ParseNotificationCategory converts raw strings into NotificationCategory.
func ParseNotificationCategory(value string) (NotificationCategory, error) {
	for _, candidate := range validNotificationCategories {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid notification category %q", value)
}
