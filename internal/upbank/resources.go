package upbank

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"upspend/internal/core"
	"upspend/internal/log"
)

// Page is one decoded page of a transaction listing. Next is empty on the
// last page.
type Page struct {
	Transactions []core.Transaction
	Next         string
	Skipped      int
}

type Account struct {
	ID          string
	DisplayName string
	Type        string
	Balance     string
	Currency    string
}

type (
	resourceRef struct {
		Type string `json:"type"`
		ID   string `json:"id"`
	}

	relOne struct {
		Data *resourceRef `json:"data"`
	}

	relMany struct {
		Data []resourceRef `json:"data"`
	}

	links struct {
		Prev *string `json:"prev"`
		Next *string `json:"next"`
	}

	moneyObject struct {
		CurrencyCode     string `json:"currencyCode"`
		Value            string `json:"value"`
		ValueInBaseUnits *int64 `json:"valueInBaseUnits"`
	}

	transactionResource struct {
		Type       string `json:"type"`
		ID         string `json:"id"`
		Attributes struct {
			Description string       `json:"description"`
			CreatedAt   string       `json:"createdAt"`
			Amount      *moneyObject `json:"amount"`
		} `json:"attributes"`
		Relationships struct {
			Category        relOne  `json:"category"`
			ParentCategory  relOne  `json:"parentCategory"`
			TransferAccount relOne  `json:"transferAccount"`
			Tags            relMany `json:"tags"`
		} `json:"relationships"`
	}

	transactionList struct {
		Data  *[]transactionResource `json:"data"`
		Links *links                 `json:"links"`
	}

	accountList struct {
		Data []struct {
			ID         string `json:"id"`
			Attributes struct {
				DisplayName string      `json:"displayName"`
				AccountType string      `json:"accountType"`
				Balance     moneyObject `json:"balance"`
			} `json:"attributes"`
		} `json:"data"`
	}

	categoryList struct {
		Data []struct {
			ID         string `json:"id"`
			Attributes struct {
				Name string `json:"name"`
			} `json:"attributes"`
			Relationships struct {
				Parent relOne `json:"parent"`
			} `json:"relationships"`
		} `json:"data"`
	}

	categoryPatch struct {
		Data resourceRef `json:"data"`
	}

	pingResponse struct {
		Meta struct {
			ID          string `json:"id"`
			StatusEmoji string `json:"statusEmoji"`
		} `json:"meta"`
	}
)

func (r relOne) id() string {
	if r.Data == nil {
		return ""
	}
	return r.Data.ID
}

// toTransaction maps one listing record onto the typed model.
func (r transactionResource) toTransaction() (core.Transaction, error) {
	if r.Attributes.Amount == nil {
		return core.Transaction{}, fmt.Errorf("transaction %q: missing amount", r.ID)
	}
	created, err := time.Parse(time.RFC3339, r.Attributes.CreatedAt)
	if err != nil && r.Attributes.CreatedAt != "" {
		return core.Transaction{}, fmt.Errorf("transaction %q: createdAt: %w", r.ID, err)
	}

	amount := r.Attributes.Amount
	var minor int64
	if amount.ValueInBaseUnits != nil {
		minor = *amount.ValueInBaseUnits
	} else {
		minor, err = core.ParseDisplayAmount(amount.Value)
		if err != nil {
			return core.Transaction{}, fmt.Errorf("transaction %q: %w", r.ID, err)
		}
	}

	tags := make([]string, 0, len(r.Relationships.Tags.Data))
	for _, t := range r.Relationships.Tags.Data {
		tags = append(tags, t.ID)
	}

	tx := core.Transaction{
		ID:                r.ID,
		CreatedAt:         created,
		Description:       r.Attributes.Description,
		AmountMinor:       minor,
		AmountDisplay:     amount.Value,
		CategoryID:        r.Relationships.Category.id(),
		ParentCategoryID:  r.Relationships.ParentCategory.id(),
		TransferAccountID: r.Relationships.TransferAccount.id(),
		Tags:              tags,
	}
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}
	return tx, nil
}

func (c *Client) decodePage(ctx context.Context, list transactionList) (Page, error) {
	if list.Data == nil {
		return Page{}, fmt.Errorf("%w: missing data array", ErrMalformedResponse)
	}
	if list.Links == nil {
		return Page{}, fmt.Errorf("%w: missing links object", ErrMalformedResponse)
	}

	page := Page{Transactions: make([]core.Transaction, 0, len(*list.Data))}
	for _, res := range *list.Data {
		tx, err := res.toTransaction()
		if err != nil {
			page.Skipped++
			c.logger.WarnContext(ctx, "Skipping malformed transaction record",
				log.FieldTxID, res.ID,
				log.FieldError, err)
			continue
		}
		page.Transactions = append(page.Transactions, tx)
	}
	if list.Links.Next != nil {
		page.Next = *list.Links.Next
	}
	return page, nil
}

// ListTransactions fetches the first page of a listing endpoint such as
// "/transactions" or "/accounts/{id}/transactions".
func (c *Client) ListTransactions(ctx context.Context, endpoint string, params url.Values) (Page, error) {
	var list transactionList
	if err := c.getJSON(ctx, c.endpointURL(endpoint), params, &list); err != nil {
		return Page{}, fmt.Errorf("list %s: %w", endpoint, err)
	}
	return c.decodePage(ctx, list)
}

// NextPage follows a links.next URL. The link is self-contained, so no
// query parameters are added.
func (c *Client) NextPage(ctx context.Context, next string) (Page, error) {
	var list transactionList
	if err := c.getJSON(ctx, next, nil, &list); err != nil {
		return Page{}, fmt.Errorf("next page: %w", err)
	}
	return c.decodePage(ctx, list)
}

// Accounts lists the user's accounts with their balances.
func (c *Client) Accounts(ctx context.Context) ([]Account, error) {
	var list accountList
	params := url.Values{"page[size]": {"100"}}
	if err := c.getJSON(ctx, c.endpointURL("/accounts"), params, &list); err != nil {
		return nil, fmt.Errorf("accounts: %w", err)
	}
	out := make([]Account, 0, len(list.Data))
	for _, a := range list.Data {
		out = append(out, Account{
			ID:          a.ID,
			DisplayName: a.Attributes.DisplayName,
			Type:        a.Attributes.AccountType,
			Balance:     a.Attributes.Balance.Value,
			Currency:    a.Attributes.Balance.CurrencyCode,
		})
	}
	return out, nil
}

// Categories builds the category directory once. Only child categories are
// kept, since transactions are always assigned to a leaf.
func (c *Client) Categories(ctx context.Context) (core.CategoryDirectory, error) {
	var list categoryList
	if err := c.getJSON(ctx, c.endpointURL("/categories"), nil, &list); err != nil {
		return core.CategoryDirectory{}, fmt.Errorf("categories: %w", err)
	}
	names := make(map[string]string, len(list.Data))
	for _, cat := range list.Data {
		if cat.Relationships.Parent.Data == nil {
			continue
		}
		names[cat.ID] = cat.Attributes.Name
	}
	return core.NewCategoryDirectory(names), nil
}
