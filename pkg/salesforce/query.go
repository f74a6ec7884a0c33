package salesforce

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/rotisserie/eris"
)

// accountCandidates bounds how many LIKE matches are compared against the
// domain.
const accountCandidates = 5

// Account is the subset of Account fields used to anchor a buyer group.
type Account struct {
	ID       string `json:"Id" salesforce:"Id"`
	Name     string `json:"Name" salesforce:"Name"`
	Website  string `json:"Website" salesforce:"Website"`
	Industry string `json:"Industry" salesforce:"Industry"`
}

// Contact is the subset of Contact fields used to match existing records.
type Contact struct {
	ID        string `json:"Id" salesforce:"Id"`
	AccountID string `json:"AccountId" salesforce:"AccountId"`
	FirstName string `json:"FirstName" salesforce:"FirstName"`
	LastName  string `json:"LastName" salesforce:"LastName"`
	Title     string `json:"Title" salesforce:"Title"`
	Email     string `json:"Email" salesforce:"Email"`
	Phone     string `json:"Phone" salesforce:"Phone"`
}

var accountFields = []string{"Id", "Name", "Website", "Industry"}

var contactFields = []string{"Id", "AccountId", "FirstName", "LastName", "Title", "Email", "Phone"}

// FindAccountByDomain returns the Account whose Website host is domain. When
// no Website matches exactly, the most recently modified partial match is
// returned. It returns nil when nothing matches.
func FindAccountByDomain(ctx context.Context, c Client, domain string) (*Account, error) {
	domain = WebsiteHost(domain)
	if domain == "" {
		return nil, eris.New("sf: domain is required")
	}
	soql := fmt.Sprintf(
		"SELECT %s FROM Account WHERE Website LIKE '%%%s%%' ORDER BY LastModifiedDate DESC LIMIT %d",
		strings.Join(accountFields, ", "),
		escapeLike(domain),
		accountCandidates,
	)

	var accounts []Account
	if err := c.Query(ctx, soql, &accounts); err != nil {
		return nil, eris.Wrapf(err, "sf: find account by domain %s", domain)
	}
	if len(accounts) == 0 {
		return nil, nil
	}
	for i := range accounts {
		if WebsiteHost(accounts[i].Website) == domain {
			return &accounts[i], nil
		}
	}
	return &accounts[0], nil
}

// FindContactsByAccountID lists the Contacts attached to an Account.
func FindContactsByAccountID(ctx context.Context, c Client, accountID string) ([]Contact, error) {
	soql := fmt.Sprintf(
		"SELECT %s FROM Contact WHERE AccountId = '%s'",
		strings.Join(contactFields, ", "),
		escapeSoql(accountID),
	)

	var contacts []Contact
	if err := c.Query(ctx, soql, &contacts); err != nil {
		return nil, eris.Wrapf(err, "sf: find contacts for account %s", accountID)
	}
	return contacts, nil
}

// WebsiteHost reduces a Website value ("https://www.Acme.com/about") to its
// lower-cased host without "www." ("acme.com").
func WebsiteHost(website string) string {
	s := strings.ToLower(strings.TrimSpace(website))
	if s == "" {
		return ""
	}
	if !strings.Contains(s, "://") {
		s = "http://" + s
	}
	u, err := url.Parse(s)
	if err != nil || u.Hostname() == "" {
		return ""
	}
	return strings.TrimPrefix(u.Hostname(), "www.")
}

func escapeSoql(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(s, `\`, `\\`), "'", `\'`)
}

// escapeLike also escapes the LIKE wildcards.
func escapeLike(s string) string {
	s = escapeSoql(s)
	s = strings.ReplaceAll(s, "%", `\%`)
	return strings.ReplaceAll(s, "_", `\_`)
}
