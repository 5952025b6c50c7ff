package rpc

// RPCError represents a JSON-RPC error response
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return e.Message
}

// SignatureInfo represents a transaction signature from getSignaturesForAddress
type SignatureInfo struct {
	Signature string      `json:"signature"`
	Slot      int64       `json:"slot"`
	Err       interface{} `json:"err"`
	BlockTime int64       `json:"blockTime"`
}

// SignaturesResponse is the response from getSignaturesForAddress
type SignaturesResponse struct {
	Result []SignatureInfo `json:"result"`
	Error  *RPCError       `json:"error"`
}

// TokenAmount represents token balance information
type TokenAmount struct {
	Amount         string  `json:"amount"`
	Decimals       int     `json:"decimals"`
	UIAmountString string  `json:"uiAmountString"`
	UIAmount       float64 `json:"uiAmount"`
}

// TokenBalance represents a token balance entry
type TokenBalance struct {
	AccountIndex  int         `json:"accountIndex"`
	Mint          string      `json:"mint"`
	Owner         string      `json:"owner"`
	UITokenAmount TokenAmount `json:"uiTokenAmount"`
}

// TransactionMeta contains metadata about a transaction
type TransactionMeta struct {
	Err               interface{}    `json:"err"`
	PreBalances       []int64        `json:"preBalances"`
	PostBalances      []int64        `json:"postBalances"`
	PreTokenBalances  []TokenBalance `json:"preTokenBalances"`
	PostTokenBalances []TokenBalance `json:"postTokenBalances"`
}

// AccountKey represents an account in a transaction
type AccountKey struct {
	Pubkey string `json:"pubkey"`
}

// TransactionMessage contains the transaction message
type TransactionMessage struct {
	AccountKeys []AccountKey `json:"accountKeys"`
}

// Transaction represents a parsed transaction
type Transaction struct {
	Message TransactionMessage `json:"message"`
}

// TransactionResult contains the full transaction data
type TransactionResult struct {
	Meta        *TransactionMeta `json:"meta"`
	Transaction *Transaction     `json:"transaction"`
}

// TransactionResponse is the response from getTransaction
type TransactionResponse struct {
	Result *TransactionResult `json:"result"`
	Error  *RPCError          `json:"error"`
}

// BalanceChange represents a token balance change in a swap
type BalanceChange struct {
	Mint   string
	Amount float64
}

// Failed reports whether the transaction errored on chain.
func (t *TransactionResult) Failed() bool {
	return t.Meta != nil && t.Meta.Err != nil
}

// OwnerTokenDeltas returns the per-mint token balance changes for
// accounts owned by the given address, post minus pre, in ui units.
// A mint that appears on only one side still produces an entry.
func (t *TransactionResult) OwnerTokenDeltas(owner string) []BalanceChange {
	if t.Meta == nil {
		return nil
	}

	pre := make(map[string]float64)
	for _, b := range t.Meta.PreTokenBalances {
		if b.Owner == owner {
			pre[b.Mint] += b.UITokenAmount.UIAmount
		}
	}
	post := make(map[string]float64)
	for _, b := range t.Meta.PostTokenBalances {
		if b.Owner == owner {
			post[b.Mint] += b.UITokenAmount.UIAmount
		}
	}

	var changes []BalanceChange
	for mint, amount := range post {
		if d := amount - pre[mint]; d != 0 {
			changes = append(changes, BalanceChange{Mint: mint, Amount: d})
		}
		delete(pre, mint)
	}
	for mint, amount := range pre {
		// Account drained and closed: only a pre entry remains.
		changes = append(changes, BalanceChange{Mint: mint, Amount: -amount})
	}
	return changes
}

// OwnerPostTokenBalance returns the owner's post-transaction balance
// for a mint, in ui units. The second return is false when the
// transaction did not touch any of the owner's accounts for that mint.
func (t *TransactionResult) OwnerPostTokenBalance(owner, mint string) (float64, bool) {
	if t.Meta == nil {
		return 0, false
	}
	total, found := 0.0, false
	for _, b := range t.Meta.PostTokenBalances {
		if b.Owner == owner && b.Mint == mint {
			total += b.UITokenAmount.UIAmount
			found = true
		}
	}
	return total, found
}

// OwnerPostLamports returns the owner's post-transaction native balance
// in lamports. The second return is false when the owner is not among
// the transaction's accounts.
func (t *TransactionResult) OwnerPostLamports(owner string) (uint64, bool) {
	if t.Meta == nil || t.Transaction == nil {
		return 0, false
	}
	for i, key := range t.Transaction.Message.AccountKeys {
		if key.Pubkey == owner && i < len(t.Meta.PostBalances) {
			return uint64(t.Meta.PostBalances[i]), true
		}
	}
	return 0, false
}
