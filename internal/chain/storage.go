package chain

import "fmt"

// Query addresses a storage entry whose value is a balance.
type Query struct {
	Pallet string
	Item   string
	Keys   []any
	// Free reads the free part of an account-data value instead of a bare
	// integer.
	Free bool
}

func (q Query) String() string {
	return fmt.Sprintf("%s.%s%v", q.Pallet, q.Item, q.Keys)
}

// AssetBalanceQuery reads how much of one asset an account holds.
func AssetBalanceQuery(who AccountID, classID, assetID uint64) Query {
	return Query{Pallet: "Asset", Item: "Balances", Keys: []any{who, classID, assetID}}
}

// CurrencyIssuanceQuery reads the total issuance of a currency.
func CurrencyIssuanceQuery(c CurrencyID) Query {
	return Query{Pallet: "Tokens", Item: "TotalIssuance", Keys: []any{c}}
}

// CurrencyBalanceQuery reads an account's free balance of a currency.
func CurrencyBalanceQuery(who AccountID, c CurrencyID) Query {
	return Query{Pallet: "Tokens", Item: "Accounts", Keys: []any{who, c}, Free: true}
}
