package ledger

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// The persisted blob may come back malformed: written by an older build,
// truncated, or hand-edited. Sanitizing never fails the load; bad fields
// coerce to defaults and only records missing their identity are dropped.

type rawStore struct {
	Version      json.RawMessage   `json:"version"`
	Portfolio    json.RawMessage   `json:"portfolio"`
	Transactions []json.RawMessage `json:"transactions"`
}

type rawPortfolio struct {
	Balances    map[string]json.RawMessage `json:"balances"`
	LastUpdated json.RawMessage            `json:"last_updated"`
	LastSource  json.RawMessage            `json:"last_source"`
}

type rawRecord struct {
	ID          json.RawMessage `json:"id"`
	CreatedAt   json.RawMessage `json:"created_at"`
	Wallet      json.RawMessage `json:"wallet"`
	FromToken   json.RawMessage `json:"from_token"`
	ToToken     json.RawMessage `json:"to_token"`
	FromAmount  json.RawMessage `json:"from_amount"`
	ToAmount    json.RawMessage `json:"to_amount"`
	SlippageBps json.RawMessage `json:"slippage_bps"`
	Status      json.RawMessage `json:"status"`
	Signature   json.RawMessage `json:"signature"`
	Note        json.RawMessage `json:"note"`
}

// SanitizeStore parses a persisted blob into a well-formed Store. A
// version mismatch or unparseable envelope yields the empty default and
// an explanatory error the caller may log; the returned store is always
// usable.
func SanitizeStore(data []byte) (*Store, error) {
	var raw rawStore
	if err := json.Unmarshal(data, &raw); err != nil {
		return EmptyStore(), fmt.Errorf("unparseable store: %w", err)
	}

	version := int(coerceFloat(raw.Version))
	if version != SchemaVersion {
		return EmptyStore(), fmt.Errorf("schema version %d does not match %d, store discarded", version, SchemaVersion)
	}

	out := EmptyStore()
	out.Portfolio = sanitizePortfolio(raw.Portfolio)

	for _, r := range raw.Transactions {
		rec, ok := sanitizeRecord(r)
		if !ok {
			continue
		}
		out.Transactions = append(out.Transactions, rec)
	}
	if len(out.Transactions) > MaxTransactions {
		out.Transactions = out.Transactions[:MaxTransactions]
	}

	return out, nil
}

func sanitizePortfolio(data json.RawMessage) *Portfolio {
	if len(data) == 0 || string(data) == "null" {
		return nil
	}

	var raw rawPortfolio
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil
	}

	p := &Portfolio{
		Balances:    make(map[string]float64, len(raw.Balances)),
		LastUpdated: coerceTime(raw.LastUpdated),
		LastSource:  coerceEnum(raw.LastSource, SourceSync, SourceSwap, SourceManual, SourceSync),
	}
	for sym, v := range raw.Balances {
		b := coerceFloat(v)
		if b < 0 {
			b = 0
		}
		p.Balances[sym] = b
	}
	return p
}

// sanitizeRecord validates minimal shape: an id and a creation timestamp
// are required, everything else coerces.
func sanitizeRecord(data json.RawMessage) (TransactionRecord, bool) {
	var raw rawRecord
	if err := json.Unmarshal(data, &raw); err != nil {
		return TransactionRecord{}, false
	}

	id := coerceString(raw.ID)
	createdAt := coerceTime(raw.CreatedAt)
	if id == "" || createdAt.IsZero() {
		return TransactionRecord{}, false
	}

	slippage := coerceFloat(raw.SlippageBps)
	if slippage < 0 {
		slippage = 0
	}
	if slippage > 65535 {
		slippage = 65535
	}

	return TransactionRecord{
		ID:          id,
		CreatedAt:   createdAt,
		Wallet:      coerceString(raw.Wallet),
		FromToken:   coerceString(raw.FromToken),
		ToToken:     coerceString(raw.ToToken),
		FromAmount:  coerceFloat(raw.FromAmount),
		ToAmount:    coerceFloat(raw.ToAmount),
		SlippageBps: uint16(slippage),
		Status:      coerceEnum(raw.Status, StatusFailed, StatusSimulated, StatusSubmitted, StatusFailed),
		Signature:   coerceString(raw.Signature),
		Note:        coerceString(raw.Note),
	}, true
}

// coerceFloat accepts a JSON number or a numeric string; anything else
// is zero.
func coerceFloat(data json.RawMessage) float64 {
	if len(data) == 0 {
		return 0
	}

	var f float64
	if err := json.Unmarshal(data, &f); err == nil {
		return f
	}

	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return f
		}
	}
	return 0
}

func coerceString(data json.RawMessage) string {
	if len(data) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		return strings.TrimSpace(s)
	}
	return ""
}

// coerceTime accepts an RFC 3339 string or a unix timestamp in seconds
// or milliseconds; anything else is the zero time.
func coerceTime(data json.RawMessage) time.Time {
	if len(data) == 0 {
		return time.Time{}
	}

	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			return t
		}
		return time.Time{}
	}

	var n float64
	if err := json.Unmarshal(data, &n); err == nil && n > 0 {
		// Millisecond timestamps are too large to be plausible seconds.
		if n > 1e12 {
			return time.UnixMilli(int64(n)).UTC()
		}
		return time.Unix(int64(n), 0).UTC()
	}
	return time.Time{}
}

// coerceEnum returns the parsed value when it is one of allowed,
// otherwise fallback.
func coerceEnum(data json.RawMessage, fallback string, allowed ...string) string {
	s := coerceString(data)
	for _, a := range allowed {
		if s == a {
			return s
		}
	}
	return fallback
}
