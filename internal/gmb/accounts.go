package gmb

import (
	"context"
	"net/http"

	"gmb-connector/internal/common/errors"
)

const (
	locationsPageSize = 100
	locationsReadMask = "name,title,metadata,storefrontAddress"
)

// ListAccounts follows page tokens until the upstream stops returning one and
// returns every account in page order.
func (c *Client) ListAccounts(ctx context.Context) ([]Account, error) {
	var accounts []Account
	pageToken := ""
	for {
		var resp accountsResponse
		if err := c.call(ctx, request{
			op:     OpListAccounts,
			method: http.MethodGet,
			base:   c.endpoints.AccountManagement,
			path:   "accounts",
			query:  pageQuery(0, pageToken),
		}, &resp); err != nil {
			return nil, err
		}

		for _, a := range resp.Accounts {
			accounts = append(accounts, Account{
				NameID:      a.Name,
				AccountName: a.AccountName,
				State:       a.VerificationState,
				Type:        a.Type,
			})
		}
		if resp.NextPageToken == "" {
			return accounts, nil
		}
		pageToken = resp.NextPageToken
	}
}

// ListLocations reads one page of the account's locations starting at
// pageToken. With recursive set it keeps reading until the last page and the
// returned page has no next token.
func (c *Client) ListLocations(ctx context.Context, account Account, recursive bool, pageToken string) (*LocationsPage, error) {
	if account.NameID == "" {
		return nil, c.classify(ctx, OpListLocations, errors.ValidationError("account name is required"))
	}

	page := &LocationsPage{}
	for {
		var resp locationsResponse
		query := pageQuery(locationsPageSize, pageToken)
		query.Set("readMask", locationsReadMask)
		if err := c.call(ctx, request{
			op:     OpListLocations,
			method: http.MethodGet,
			base:   c.endpoints.BusinessInformation,
			path:   account.NameID + "/locations",
			query:  query,
		}, &resp); err != nil {
			return nil, err
		}

		for _, l := range resp.Locations {
			hasVoice := l.Metadata != nil && l.Metadata.HasVoiceOfMerchant
			page.Locations = append(page.Locations, Location{
				NameID:      account.NameID + "/" + l.Name,
				Name:        l.Title,
				Address:     FormatAddress(l.StorefrontAddress),
				CanPost:     hasVoice,
				IsPublished: hasVoice,
				IsVerified:  hasVoice,
			})
		}

		page.NextPageToken = resp.NextPageToken
		if !recursive || resp.NextPageToken == "" {
			return page, nil
		}
		pageToken = resp.NextPageToken
	}
}
