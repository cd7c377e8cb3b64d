package migration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/dhos/dhos/internal/domain/clinician"
)

// Permissions carried by the system token for clinician migration.
var migrationPermissions = []string{
	"read:gdm_clinician_all",
	"read:send_clinician_all",
	"write:clinician_migration",
}

// UsersClient pushes migrated clinicians to the users API in bulk,
// authenticating with a short-lived system JWT.
type UsersClient struct {
	host     string
	issuer   string
	audience string
	key      []byte
	expiry   time.Duration
	http     *http.Client
}

func NewUsersClient(host, issuer, audience string, key []byte) *UsersClient {
	return &UsersClient{
		host:     strings.TrimRight(host, "/"),
		issuer:   issuer,
		audience: audience,
		key:      key,
		expiry:   5 * time.Minute,
		http:     &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *UsersClient) systemJWT() (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.MapClaims{
		"metadata": map[string]string{"system_id": "dhos-robot"},
		"iss":      c.issuer,
		"aud":      c.audience,
		"scope":    strings.Join(migrationPermissions, " "),
		"exp":      time.Now().Add(c.expiry).Unix(),
	})
	return token.SignedString(c.key)
}

// ExistingIDs returns the ids of every clinician the users API already has.
func (c *UsersClient) ExistingIDs(ctx context.Context) (map[uuid.UUID]bool, error) {
	token, err := c.systemJWT()
	if err != nil {
		return nil, fmt.Errorf("sign system token: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.host+"/dhos/v1/clinicians?compact=true", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("users api returned %d listing clinicians", resp.StatusCode)
	}

	var users []struct {
		ID uuid.UUID `json:"uuid"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&users); err != nil {
		return nil, err
	}
	existing := make(map[uuid.UUID]bool, len(users))
	for _, u := range users {
		existing[u.ID] = true
	}
	return existing, nil
}

// BulkCreate uploads one chunk of clinicians and returns how many the users
// API created.
func (c *UsersClient) BulkCreate(ctx context.Context, clinicians []*clinician.Clinician) (int, error) {
	body, err := json.Marshal(clinicians)
	if err != nil {
		return 0, err
	}
	token, err := c.systemJWT()
	if err != nil {
		return 0, fmt.Errorf("sign system token: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.host+"/dhos/v1/clinician/bulk", bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return 0, fmt.Errorf("users api returned %d creating clinicians", resp.StatusCode)
	}

	var out struct {
		Created int `json:"created"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, err
	}
	return out.Created, nil
}
