package zuora

import (
	"context"

	"github.com/cheyinl/zuora-soap/soap"
)

// Login authenticates now, replacing any current session. Calls log in on
// their own when needed, so this is only useful to fail fast on bad
// credentials.
func (c *Client) Login(ctx context.Context) (*LoginResult, error) {
	return c.login(ctx)
}

// Create inserts objects and returns one result per object, in order.
func (c *Client) Create(ctx context.Context, objs ...*soap.Object) ([]SaveResult, error) {
	return c.save(ctx, "create", objs)
}

// Update modifies objects identified by their Id property.
func (c *Client) Update(ctx context.Context, objs ...*soap.Object) ([]SaveResult, error) {
	return c.save(ctx, "update", objs)
}

// Generate asks the tenant to generate documents such as invoices.
func (c *Client) Generate(ctx context.Context, objs ...*soap.Object) ([]SaveResult, error) {
	return c.save(ctx, "generate", objs)
}

func (c *Client) save(ctx context.Context, op string, objs []*soap.Object) ([]SaveResult, error) {
	resp := &saveResponse{}
	if err := c.call(ctx, op, &saveRequest{ZObjects: objs}, resp); err != nil {
		return nil, err
	}
	return resp.Results, nil
}

// Delete removes objects of typeName by id.
func (c *Client) Delete(ctx context.Context, typeName string, ids ...string) ([]DeleteResult, error) {
	resp := &deleteResponse{}
	if err := c.call(ctx, "delete", &deleteRequest{Type: typeName, IDs: ids}, resp); err != nil {
		return nil, err
	}
	return resp.Results, nil
}

// Query runs a ZOQL statement and returns the first page.
func (c *Client) Query(ctx context.Context, zoql string) (*QueryResult, error) {
	resp := &queryResponse{}
	if err := c.call(ctx, "query", &queryRequest{QueryString: zoql}, resp); err != nil {
		return nil, err
	}
	return &resp.Result, nil
}

// QueryMore fetches the page following locator.
func (c *Client) QueryMore(ctx context.Context, locator string) (*QueryResult, error) {
	resp := &queryResponse{}
	if err := c.call(ctx, "queryMore", &queryMoreRequest{QueryLocator: locator}, resp); err != nil {
		return nil, err
	}
	return &resp.Result, nil
}

// QueryAll runs a ZOQL statement and follows query locators until done.
func (c *Client) QueryAll(ctx context.Context, zoql string) ([]*soap.Record, error) {
	page, err := c.Query(ctx, zoql)
	if err != nil {
		return nil, err
	}
	records := page.Records
	for !page.Done && page.QueryLocator != "" {
		if page, err = c.QueryMore(ctx, page.QueryLocator); err != nil {
			return nil, err
		}
		records = append(records, page.Records...)
	}
	return records, nil
}

// Amend applies amendment requests.
func (c *Client) Amend(ctx context.Context, reqs ...*soap.Object) ([]AmendResult, error) {
	resp := &amendResponse{}
	if err := c.call(ctx, "amend", &amendRequest{Requests: reqs}, resp); err != nil {
		return nil, err
	}
	return resp.Results, nil
}

// Subscribe creates accounts and subscriptions in one step.
func (c *Client) Subscribe(ctx context.Context, reqs ...*soap.Object) ([]SubscribeResult, error) {
	resp := &subscribeResponse{}
	if err := c.call(ctx, "subscribe", &subscribeRequest{Subscribes: reqs}, resp); err != nil {
		return nil, err
	}
	return resp.Results, nil
}

// Execute runs a server-side process, e.g. invoice posting, on the ids given.
func (c *Client) Execute(ctx context.Context, typeName string, synchronous bool, ids ...string) ([]ExecuteResult, error) {
	resp := &executeResponse{}
	req := &executeRequest{Type: typeName, Synchronous: synchronous, IDs: ids}
	if err := c.call(ctx, "execute", req, resp); err != nil {
		return nil, err
	}
	return resp.Results, nil
}

// GetUserInfo describes the user and tenant behind the session.
func (c *Client) GetUserInfo(ctx context.Context) (*UserInfo, error) {
	resp := &getUserInfoResponse{}
	if err := c.call(ctx, "getUserInfo", &getUserInfoRequest{}, resp); err != nil {
		return nil, err
	}
	return &resp.UserInfo, nil
}
