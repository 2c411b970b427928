// Package antispam holds the checks a contact submission must pass before it
// is stored or forwarded.
package antispam

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	// FormThreshold is the rejection score used when validating the form.
	FormThreshold = 30

	// DeliveryThreshold is the rejection score used right before an email goes out.
	DeliveryThreshold = 20
)

const (
	minContentLength = 10
	maxContentLength = 2000
	freeLinks        = 2
	repeatRunLength  = 5

	extraLinkWeight = 8
	repeatRunWeight = 5
	tooShortWeight  = 15
	tooLongWeight   = 10
)

// Rule is a weighted pattern detector. Every match adds Weight to the score.
type Rule struct {
	Name    string
	Weight  int
	Pattern *regexp.Regexp
	Reason  string
}

var (
	ruleMedical = Rule{
		Name:    "medical",
		Weight:  15,
		Pattern: regexp.MustCompile(`(?i)\b(viagra|cialis|levitra|pharmacy|farm[aá]cia online|pills?|p[ií]lulas?|weight loss|emagrecimento)\b`),
		Reason:  "medical spam terms",
	}
	ruleGambling = Rule{
		Name:    "gambling",
		Weight:  12,
		Pattern: regexp.MustCompile(`(?i)\b(casino|cassino|poker|betting|apostas?|jackpot|roleta|roulette|slots?|lottery|loteria)\b`),
		Reason:  "gambling terms",
	}
	ruleFinancial = Rule{
		Name:    "financial",
		Weight:  10,
		Pattern: regexp.MustCompile(`(?i)\b(bitcoin|crypto|forex|wire transfer|western union|inheritance|heran[cç]a|make money fast|ganhe dinheiro|renda extra|investment opportunity|oportunidade de investimento)\b`),
		Reason:  "financial scam terms",
	}
	ruleUrgency = Rule{
		Name:    "urgency",
		Weight:  8,
		Pattern: regexp.MustCompile(`(?i)\b(act now|buy now|order now|limited time|urgent|urgente|click here|clique aqui|last chance|[uú]ltima chance|n[aã]o perca|don'?t miss)\b`),
		Reason:  "urgency phrases",
	}
	rulePromotional = Rule{
		Name:    "promotional",
		Weight:  5,
		Pattern: regexp.MustCompile(`(?i)\b(free|gr[aá]tis|discount|desconto|promo[cç][aã]o|offer|oferta|winner|ganhador|prize|pr[eê]mio|cheap|barato)\b`),
		Reason:  "promotional terms",
	}
	ruleURLChain = Rule{
		Name:    "url_chain",
		Weight:  15,
		Pattern: regexp.MustCompile(`(?i)(?:https?://\S+\s*){3,}`),
		Reason:  "three or more consecutive URLs",
	}
	rulePunctuation = Rule{
		Name:    "punctuation",
		Weight:  5,
		Pattern: regexp.MustCompile(`[!?]{3,}`),
		Reason:  "excessive punctuation",
	}
	ruleUppercase = Rule{
		Name:    "uppercase",
		Weight:  8,
		Pattern: regexp.MustCompile(`\b[A-Z][A-Z ]{9,}[A-Z]\b`),
		Reason:  "long uppercase run",
	}
	ruleCurrency = Rule{
		Name:    "currency",
		Weight:  10,
		Pattern: regexp.MustCompile(`(?i)(?:R\$|US\$|\$|€|£)\s?\d[\d.,]*|\b\d[\d.,]*\s?(?:reais|d[oó]lares|dollars|usd|euros?)\b`),
		Reason:  "currency amounts",
	}
	ruleCreditCard = Rule{
		Name:    "credit_card",
		Weight:  20,
		Pattern: regexp.MustCompile(`\b(?:\d{4}[ -]?){3}\d{4}\b`),
		Reason:  "credit card like digit groups",
	}

	linkPattern = regexp.MustCompile(`(?i)https?://\S+|\bwww\.\S+`)
)

// Result is the outcome of scoring one piece of content.
type Result struct {
	Score   int      `json:"score"`
	Reasons []string `json:"reasons"`
}

// Scorer sums weighted detector matches and compares them to a threshold.
// A Scorer is immutable and safe for concurrent use.
type Scorer struct {
	name         string
	threshold    int
	rules        []Rule
	lengthChecks bool
	repeatChecks bool
}

// FormScorer is the full detector set applied to submitted messages.
func FormScorer() *Scorer {
	return &Scorer{
		name:      "form",
		threshold: FormThreshold,
		rules: []Rule{
			ruleMedical, ruleGambling, ruleFinancial, ruleUrgency, rulePromotional,
			ruleURLChain, rulePunctuation, ruleUppercase, ruleCurrency, ruleCreditCard,
		},
		lengthChecks: true,
		repeatChecks: true,
	}
}

// DeliveryScorer is the smaller, stricter set checked by the delivery service
// on outbound bodies. Length checks are skipped because templates pad the body.
func DeliveryScorer() *Scorer {
	return &Scorer{
		name:      "delivery",
		threshold: DeliveryThreshold,
		rules: []Rule{
			ruleMedical, ruleGambling, ruleFinancial, ruleURLChain, ruleCreditCard,
		},
	}
}

// Name identifies the policy in logs and metrics.
func (s *Scorer) Name() string { return s.name }

// Threshold is the first score that gets rejected.
func (s *Scorer) Threshold() int { return s.threshold }

// Score runs every detector over content.
func (s *Scorer) Score(content string) Result {
	res := Result{Reasons: []string{}}

	for _, rule := range s.rules {
		n := len(rule.Pattern.FindAllStringIndex(content, -1))
		if n == 0 {
			continue
		}
		res.add(rule.Weight*n, rule.Reason, n)
	}

	if links := len(linkPattern.FindAllStringIndex(content, -1)); links > freeLinks {
		extra := links - freeLinks
		res.add(extraLinkWeight*extra, "too many links", extra)
	}

	if s.repeatChecks {
		if runs := countRepeatRuns(content, repeatRunLength); runs > 0 {
			res.add(repeatRunWeight*runs, "repeated characters", runs)
		}
	}

	if s.lengthChecks {
		length := utf8.RuneCountInString(strings.TrimSpace(content))
		switch {
		case length < minContentLength:
			res.add(tooShortWeight, "content too short", 1)
		case length > maxContentLength:
			res.add(tooLongWeight, "content too long", 1)
		}
	}

	return res
}

// Check scores content and reports whether it is accepted.
func (s *Scorer) Check(content string) (Result, bool) {
	res := s.Score(content)
	return res, res.Score < s.threshold
}

func (r *Result) add(points int, reason string, matches int) {
	r.Score += points
	if matches > 1 {
		reason = fmt.Sprintf("%s (x%d)", reason, matches)
	}
	r.Reasons = append(r.Reasons, reason)
}

// countRepeatRuns counts maximal runs of at least n identical runes.
// RE2 has no backreferences, so this is a manual scan.
func countRepeatRuns(s string, n int) int {
	var (
		runs  int
		prev  rune
		count int
	)
	for i, r := range s {
		if i > 0 && r == prev {
			count++
		} else {
			if count >= n {
				runs++
			}
			prev, count = r, 1
		}
	}
	if count >= n {
		runs++
	}
	return runs
}
