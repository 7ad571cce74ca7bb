// pkg/cleaner/user.go
package cleaner

import (
	"regexp"
	"strings"

	"github.com/David-Botos/sales-ingress/pkg/model"
)

var userSchema = schema{
	{"first_name", model.KindText, true},
	{"last_name", model.KindText, true},
	{"company", model.KindText, true},
	{"email_address", model.KindText, true},
	{"address", model.KindText, true},
	{"country", model.KindText, true},
	{"country_code", model.KindText, true},
	{"phone_number", model.KindText, true},
	{"date_of_birth", model.KindTimestamp, true},
	{"join_date", model.KindTimestamp, true},
	{"user_uuid", model.KindText, true},
}

var (
	countryCodePattern = regexp.MustCompile(`^[A-Z]{2}$`)
	phoneJunk          = regexp.MustCompile(`[x.]`)
	phonePattern       = regexp.MustCompile(`^[0-9+()\- ]+$`)
)

// UserCleaner cleans the legacy user table
type UserCleaner struct {
	parseDate DateParser
}

// NewUserCleaner creates a user cleaner
func NewUserCleaner(parseDate DateParser) *UserCleaner {
	return &UserCleaner{parseDate: parseDate}
}

func (c *UserCleaner) Entity() string { return EntityUser }

// Clean repairs country codes, e-mail addresses and phone numbers and
// parses both user dates
func (c *UserCleaner) Clean(raw *model.Table) (*model.Table, int) {
	work := raw.Clone()

	apply(work, "country_code",
		replaceExact("GGB", "GB"),
		keepMatching(countryCodePattern),
	)
	apply(work, "email_address",
		replaceAll("@@", "@"),
		keepIf(func(s string) bool { return strings.Count(s, "@") == 1 }),
	)
	apply(work, "phone_number",
		removePattern(phoneJunk),
		keepMatching(phonePattern),
	)
	apply(work, "date_of_birth", parseDate(c.parseDate))
	apply(work, "join_date", parseDate(c.parseDate))

	return finalize(work, raw.Len(), userSchema)
}
