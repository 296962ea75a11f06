package etp

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"sort"

	"github.com/pablasso/etp/internal/errors"
)

// ImportSlots are the profile slots copied by ImportSA.
var ImportSlots = []string{"sip", "transfer_project", "submit_description"}

var (
	importSlotPattern  = regexp.MustCompile(`^profile_(sip|transfer_project|submit_description)$`)
	profileFieldPrefix = regexp.MustCompile(`^profile_`)
)

func saPath(id string) string {
	return "api/submission-agreements/" + url.PathEscape(id) + "/"
}

func profilePath(id string) string {
	return "api/profiles/" + url.PathEscape(id) + "/"
}

// ListSubmissionAgreements returns the submission agreements on the server.
// When published is set only published agreements are returned.
func (c *Client) ListSubmissionAgreements(ctx context.Context, published bool) ([]SubmissionAgreement, error) {
	q := url.Values{}
	if published {
		q.Set("published", "true")
	}
	var out []SubmissionAgreement
	if err := c.get(ctx, "list submission agreements", "api/submission-agreements/", q, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetSubmissionAgreement returns one submission agreement.
func (c *Client) GetSubmissionAgreement(ctx context.Context, id string) (*SubmissionAgreement, error) {
	var sa SubmissionAgreement
	if err := c.get(ctx, "get submission agreement", saPath(id), nil, &sa); err != nil {
		return nil, err
	}
	return &sa, nil
}

// GetProfile returns one profile.
func (c *Client) GetProfile(ctx context.Context, id string) (*Profile, error) {
	var p Profile
	if err := c.get(ctx, "get profile", profilePath(id), nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// GetSAProfiles returns the submission agreement of an IP and its profile
// slots, sorted by slot name, with the lock state of each profile.
func (c *Client) GetSAProfiles(ctx context.Context, ipID string) (*SAProfiles, error) {
	ip, err := c.GetIP(ctx, ipID)
	if err != nil {
		return nil, err
	}
	if ip.SubmissionAgreement == "" {
		return nil, fmt.Errorf("get sa profiles: information package %s has no submission agreement", ipID)
	}
	sa, err := c.GetSubmissionAgreement(ctx, ip.SubmissionAgreement)
	if err != nil {
		return nil, err
	}

	locked := make(map[string]bool, len(ip.Locks))
	for _, l := range ip.Locks {
		locked[l.Profile] = true
	}

	out := &SAProfiles{Agreement: sa}
	for slot, pid := range sa.Profiles {
		p, err := c.GetProfile(ctx, pid)
		if err != nil {
			return nil, fmt.Errorf("get sa profiles: %w", err)
		}
		out.Slots = append(out.Slots, ProfileSlot{
			Slot:      slot,
			ProfileID: pid,
			Profile:   p,
			Locked:    locked[p.URL] || locked[pid],
		})
	}
	sort.Slice(out.Slots, func(i, j int) bool { return out.Slots[i].Slot < out.Slots[j].Slot })
	return out, nil
}

// ChangeProfile replaces the profile of one slot on the IP.
func (c *Client) ChangeProfile(ctx context.Context, ipID, slot, profileID string) error {
	body := map[string]any{"type": slot, "new_profile": profileID}
	return c.do(ctx, "change profile", http.MethodPut, ipPath(ipID)+"change-profile/", nil, body, nil)
}

// DeleteLock removes a profile lock by its URL.
func (c *Client) DeleteLock(ctx context.Context, lockURL string) error {
	return c.do(ctx, "delete lock", http.MethodDelete, lockURL, nil, nil, nil)
}

// UnlockProfile finds the lock tying the profile to the IP and agreement and
// deletes it. It returns ErrNotFound when no such lock exists.
func (c *Client) UnlockProfile(ctx context.Context, ipID, saURL, profileURL string) error {
	ip, err := c.GetIP(ctx, ipID)
	if err != nil {
		return err
	}
	for _, l := range ip.Locks {
		if l.InformationPackage == ip.URL && l.SubmissionAgreement == saURL && l.Profile == profileURL {
			return c.DeleteLock(ctx, l.URL)
		}
	}
	return fmt.Errorf("unlock profile: %w", errors.ErrNotFound)
}

// ImportResult reports what ImportSA copied.
type ImportResult struct {
	AgreementID string
	Imported    []string
	Skipped     []string
}

// ImportSA copies a submission agreement from remote to this server. The
// profiles in ImportSlots are imported first; other profile slots are
// dropped from the agreement. Profiles the server rejects (typically
// because they already exist) are skipped.
func (c *Client) ImportSA(ctx context.Context, remote *Client, saID string) (*ImportResult, error) {
	var sa map[string]any
	if err := remote.get(ctx, "import sa: fetch agreement", saPath(saID), nil, &sa); err != nil {
		return nil, err
	}

	res := &ImportResult{AgreementID: saID}
	keys := make([]string, 0, len(sa))
	for k := range sa {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if !importSlotPattern.MatchString(k) {
			continue
		}
		pid, ok := sa[k].(string)
		if !ok || pid == "" {
			continue
		}
		var profile map[string]any
		if err := remote.get(ctx, "import sa: fetch profile", profilePath(pid), nil, &profile); err != nil {
			return nil, err
		}
		err := c.post(ctx, "import sa: create profile", "api/profiles/", profile, nil)
		var apiErr *errors.APIError
		switch {
		case err == nil:
			res.Imported = append(res.Imported, pid)
		case errors.As(err, &apiErr) && apiErr.StatusCode < 500:
			c.logger.Warn("profile not imported", "profile_id", pid, "status", apiErr.StatusCode, "detail", apiErr.Detail)
			res.Skipped = append(res.Skipped, pid)
		default:
			return nil, err
		}
	}

	for _, k := range keys {
		if profileFieldPrefix.MatchString(k) && !importSlotPattern.MatchString(k) {
			delete(sa, k)
		}
	}
	if err := c.post(ctx, "import sa: create agreement", "api/submission-agreements/", sa, nil); err != nil {
		return nil, err
	}
	return res, nil
}
