// pkg/cleaner/card.go
package cleaner

import (
	"regexp"
	"strconv"

	"github.com/David-Botos/sales-ingress/pkg/model"
)

var cardSchema = schema{
	{"card_number", model.KindText, true},
	{"expiry_date", model.KindText, true},
	{"card_provider", model.KindText, true},
	{"date_payment_confirmed", model.KindTimestamp, true},
}

var expiryPattern = regexp.MustCompile(`^(\d{2})/\d{2}$`)

// CardCleaner cleans card details scraped from the PDF export
type CardCleaner struct {
	parseDate       DateParser
	providerSupport int
	lengths         map[string]map[int]bool
	lengthSupport   int
}

// NewCardCleaner creates a card cleaner from the card fields of opts
func NewCardCleaner(opts Options) *CardCleaner {
	c := &CardCleaner{
		parseDate:       opts.ParseDate,
		providerSupport: opts.CardProviderSupport,
		lengthSupport:   opts.CardLengthSupport,
	}
	if c.parseDate == nil {
		c.parseDate = SafeParse
	}
	if opts.CardLengths != nil {
		c.lengths = make(map[string]map[int]bool, len(opts.CardLengths))
		for provider, lengths := range opts.CardLengths {
			set := make(map[int]bool, len(lengths))
			for _, l := range lengths {
				set[l] = true
			}
			c.lengths[provider] = set
		}
	}
	return c
}

func (c *CardCleaner) Entity() string { return EntityCard }

// Clean validates expiry dates and providers, strips placeholder "?"
// characters from card numbers and, when configured, checks each number's
// length against its provider
func (c *CardCleaner) Clean(raw *model.Table) (*model.Table, int) {
	work := raw.Clone()

	var providers model.FrequencyTable
	if col, ok := raw.Column("card_provider"); ok {
		providers = model.CountValues(col)
	}

	apply(work, "expiry_date", keepIf(isExpiryDate))
	apply(work, "card_provider", keepIf(func(s string) bool {
		return providers.Above(s, c.providerSupport)
	}))
	apply(work, "date_payment_confirmed", parseDate(c.parseDate))
	apply(work, "card_number",
		replaceAll("?", ""),
		keepIf(isAllDigits),
	)

	if accepted := c.acceptedLengths(work); accepted != nil {
		c.maskLengths(work, accepted)
	}

	return finalize(work, raw.Len(), cardSchema)
}

// acceptedLengths returns the provider to length set used for the length
// check, or nil when the check is disabled
func (c *CardCleaner) acceptedLengths(work *model.Table) map[string]map[int]bool {
	if c.lengths != nil {
		return c.lengths
	}
	if c.lengthSupport <= 0 {
		return nil
	}

	numbers, ok := work.Column("card_number")
	if !ok {
		return nil
	}
	providers, ok := work.Column("card_provider")
	if !ok {
		return nil
	}

	keys := make([]string, 0, work.Len())
	for i := range numbers.Values {
		if numbers.Values[i].IsMissing() || providers.Values[i].IsMissing() {
			continue
		}
		keys = append(keys, lengthKey(providers.Values[i].String(), len(numbers.Values[i].String())))
	}
	pairs := model.NewFrequencyTable(keys)

	accepted := make(map[string]map[int]bool)
	for i := range numbers.Values {
		if numbers.Values[i].IsMissing() || providers.Values[i].IsMissing() {
			continue
		}
		provider := providers.Values[i].String()
		length := len(numbers.Values[i].String())
		if !pairs.Above(lengthKey(provider, length), c.lengthSupport) {
			continue
		}
		if accepted[provider] == nil {
			accepted[provider] = make(map[int]bool)
		}
		accepted[provider][length] = true
	}
	return accepted
}

func (c *CardCleaner) maskLengths(work *model.Table, accepted map[string]map[int]bool) {
	providers, ok := work.Column("card_provider")
	if !ok {
		return
	}
	numbers, ok := work.Column("card_number")
	if !ok {
		return
	}
	maskRows(work, "card_number", func(r int) bool {
		if providers.Values[r].IsMissing() {
			return false
		}
		return !accepted[providers.Values[r].String()][len(numbers.Values[r].String())]
	})
}

func lengthKey(provider string, length int) string {
	return provider + "|" + strconv.Itoa(length)
}

// isExpiryDate accepts MM/YY with a month between 01 and 12
func isExpiryDate(s string) bool {
	m := expiryPattern.FindStringSubmatch(s)
	if m == nil {
		return false
	}
	return intInRange(m[1], 1, 12)
}
