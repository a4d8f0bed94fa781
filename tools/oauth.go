package tools

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

// MetaOAuthClient drives the Facebook Login code flow and the account
// discovery calls that follow it.
type MetaOAuthClient struct {
	AppID       string
	AppSecret   string
	ApiVersion  string
	RedirectURI string
}

func (c MetaOAuthClient) apiVersion() string {
	v := strings.TrimSpace(c.ApiVersion)
	if v == "" {
		v = DefaultApiVersion
	}
	return v
}

// platformScopes maps our platform tags to the Graph permission sets each
// integration needs.
var platformScopes = map[string]string{
	"whatsapp":  "whatsapp_business_management,whatsapp_business_messaging,business_management",
	"messenger": "pages_show_list,pages_messaging,pages_manage_metadata",
	"instagram": "instagram_basic,instagram_manage_messages,pages_show_list,pages_manage_metadata",
}

// AuthorizeURL builds the provider authorize URL carrying our CSRF state.
func (c MetaOAuthClient) AuthorizeURL(platform string, state string) string {
	q := url.Values{}
	q.Set("client_id", c.AppID)
	q.Set("redirect_uri", c.RedirectURI)
	q.Set("state", state)
	q.Set("response_type", "code")
	q.Set("scope", platformScopes[platform])
	return fmt.Sprintf("https://www.facebook.com/%s/dialog/oauth?%s", c.apiVersion(), q.Encode())
}

// ExchangeCode trades the callback code for a short-lived user token.
func (c MetaOAuthClient) ExchangeCode(ctx context.Context, code string) (string, error) {
	q := url.Values{}
	q.Set("client_id", c.AppID)
	q.Set("client_secret", c.AppSecret)
	q.Set("redirect_uri", c.RedirectURI)
	q.Set("code", code)
	return c.fetchToken(ctx, q)
}

// ExtendToken upgrades a short-lived token to a long-lived one.
func (c MetaOAuthClient) ExtendToken(ctx context.Context, shortLivedToken string) (string, error) {
	q := url.Values{}
	q.Set("grant_type", "fb_exchange_token")
	q.Set("client_id", c.AppID)
	q.Set("client_secret", c.AppSecret)
	q.Set("fb_exchange_token", shortLivedToken)
	return c.fetchToken(ctx, q)
}

func (c MetaOAuthClient) fetchToken(ctx context.Context, q url.Values) (string, error) {
	u := fmt.Sprintf("%s/%s/oauth/access_token?%s", GraphBaseURL(), c.apiVersion(), q.Encode())
	var out struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := graphGet(ctx, u, "", &out); err != nil {
		return "", err
	}
	if out.AccessToken == "" {
		return "", fmt.Errorf("token exchange: response carried no access_token")
	}
	return out.AccessToken, nil
}

// MetaUser is the identity behind the token.
type MetaUser struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func (c MetaOAuthClient) FetchMe(ctx context.Context, token string) (MetaUser, error) {
	var me MetaUser
	u := fmt.Sprintf("%s/%s/me?fields=id,name", GraphBaseURL(), c.apiVersion())
	err := graphGet(ctx, u, token, &me)
	return me, err
}

// WhatsAppAccount is one selectable WhatsApp phone number, discovered via
// businesses -> owned WABAs -> phone numbers.
type WhatsAppAccount struct {
	WabaID             string `json:"waba_id"`
	WabaName           string `json:"waba_name"`
	PhoneNumberID      string `json:"phone_number_id"`
	DisplayPhoneNumber string `json:"display_phone_number"`
	VerifiedName       string `json:"verified_name"`
}

type graphList struct {
	Data []struct {
		ID                 string `json:"id"`
		Name               string `json:"name"`
		DisplayPhoneNumber string `json:"display_phone_number"`
		VerifiedName       string `json:"verified_name"`
	} `json:"data"`
}

// ListWhatsAppAccounts enumerates every phone number the token can manage.
func (c MetaOAuthClient) ListWhatsAppAccounts(ctx context.Context, token string) ([]WhatsAppAccount, error) {
	base := fmt.Sprintf("%s/%s", GraphBaseURL(), c.apiVersion())

	var businesses graphList
	if err := graphGet(ctx, base+"/me/businesses?fields=id,name", token, &businesses); err != nil {
		return nil, err
	}

	var accounts []WhatsAppAccount
	for _, biz := range businesses.Data {
		var wabas graphList
		u := fmt.Sprintf("%s/%s/owned_whatsapp_business_accounts?fields=id,name", base, biz.ID)
		if err := graphGet(ctx, u, token, &wabas); err != nil {
			return nil, err
		}
		for _, waba := range wabas.Data {
			var phones graphList
			u := fmt.Sprintf("%s/%s/phone_numbers?fields=id,display_phone_number,verified_name", base, waba.ID)
			if err := graphGet(ctx, u, token, &phones); err != nil {
				return nil, err
			}
			for _, phone := range phones.Data {
				accounts = append(accounts, WhatsAppAccount{
					WabaID:             waba.ID,
					WabaName:           waba.Name,
					PhoneNumberID:      phone.ID,
					DisplayPhoneNumber: phone.DisplayPhoneNumber,
					VerifiedName:       phone.VerifiedName,
				})
			}
		}
	}
	return accounts, nil
}

// PageAccount is one selectable Facebook page with its page-scoped token
// and, when linked, the Instagram business account behind it.
type PageAccount struct {
	PageID            string `json:"page_id"`
	PageName          string `json:"page_name"`
	PageAccessToken   string `json:"page_access_token"`
	InstagramID       string `json:"instagram_id,omitempty"`
	InstagramUsername string `json:"instagram_username,omitempty"`
}

// ListPages enumerates the pages the token manages, including linked IG
// business accounts for the Instagram flow.
func (c MetaOAuthClient) ListPages(ctx context.Context, token string) ([]PageAccount, error) {
	u := fmt.Sprintf("%s/%s/me/accounts?fields=id,name,access_token,instagram_business_account{id,username}", GraphBaseURL(), c.apiVersion())
	var out struct {
		Data []struct {
			ID                       string `json:"id"`
			Name                     string `json:"name"`
			AccessToken              string `json:"access_token"`
			InstagramBusinessAccount *struct {
				ID       string `json:"id"`
				Username string `json:"username"`
			} `json:"instagram_business_account"`
		} `json:"data"`
	}
	if err := graphGet(ctx, u, token, &out); err != nil {
		return nil, err
	}

	pages := make([]PageAccount, 0, len(out.Data))
	for _, p := range out.Data {
		page := PageAccount{PageID: p.ID, PageName: p.Name, PageAccessToken: p.AccessToken}
		if p.InstagramBusinessAccount != nil {
			page.InstagramID = p.InstagramBusinessAccount.ID
			page.InstagramUsername = p.InstagramBusinessAccount.Username
		}
		pages = append(pages, page)
	}
	return pages, nil
}
