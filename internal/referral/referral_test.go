package referral

import (
	"context"
	"net/url"
	"sync"
	"testing"

	"influencer-attribution-api/internal/models"
	"influencer-attribution-api/internal/validation"
)

const base = "https://guidexperts.in/counsellor-registration"

func TestBuildLink_Deterministic(t *testing.T) {
	a := BuildLink(base, "John Doe", models.PlatformInstagram, "launch")
	b := BuildLink(base, "John Doe", models.PlatformInstagram, "launch")

	if a != b {
		t.Fatalf("expected identical links, got %q and %q", a, b)
	}

	want := base + "?utm_campaign=launch&utm_content=John+Doe&utm_medium=referral&utm_source=Instagram"
	if a != want {
		t.Errorf("expected %q, got %q", want, a)
	}
}

func TestBuildLink_DefaultCampaign(t *testing.T) {
	link := BuildLink(base, "Asha", models.PlatformYouTube, "   ")

	u, err := url.Parse(link)
	if err != nil {
		t.Fatalf("link does not parse: %v", err)
	}
	if got := u.Query().Get("utm_campaign"); got != DefaultCampaign {
		t.Errorf("expected default campaign %q, got %q", DefaultCampaign, got)
	}
}

func TestBuildLink_KeepsExistingQuery(t *testing.T) {
	link := BuildLink(base+"?lang=en", "Asha", models.PlatformTelegram, "x")

	u, err := url.Parse(link)
	if err != nil {
		t.Fatalf("link does not parse: %v", err)
	}
	q := u.Query()
	if q.Get("lang") != "en" || q.Get("utm_source") != "Telegram" {
		t.Errorf("unexpected query: %v", q)
	}
}

func TestBuildLink_DistinctTuplesDoNotCollide(t *testing.T) {
	tuples := []struct {
		name     string
		platform models.Platform
		campaign string
	}{
		{"Asha", models.PlatformInstagram, "launch"},
		{"Asha", models.PlatformYouTube, "launch"},
		{"Asha", models.PlatformInstagram, "summer"},
		{"Asha&utm_campaign=x", models.PlatformInstagram, "launch"},
		{"Ravi", models.PlatformInstagram, "launch"},
	}

	seen := make(map[string]int)
	for i, tp := range tuples {
		link := BuildLink(base, tp.name, tp.platform, tp.campaign)
		if j, ok := seen[link]; ok {
			t.Errorf("tuples %d and %d produced the same link %q", j, i, link)
		}
		seen[link] = i
	}
}

type memoryRepo struct {
	mu    sync.Mutex
	links []models.ReferralLink
}

func (m *memoryRepo) InsertLink(ctx context.Context, link models.ReferralLink) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.links = append(m.links, link)
	return nil
}

func (m *memoryRepo) ListLinks(ctx context.Context) ([]models.ReferralLink, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.ReferralLink(nil), m.links...), nil
}

func (m *memoryRepo) DeleteLink(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, l := range m.links {
		if l.ID == id {
			m.links = append(m.links[:i], m.links[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func TestService_CreatePreviewDoesNotPersist(t *testing.T) {
	repo := &memoryRepo{}
	svc := NewService(repo, NewGenerator(base, "", ""))

	link, err := svc.Create(context.Background(), models.CreateLinkRequest{
		InfluencerName: "Asha",
		Platform:       models.PlatformInstagram,
		Campaign:       "launch",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if link.ID != "" {
		t.Errorf("preview should not carry an id, got %q", link.ID)
	}
	if link.UTMLink != BuildLink(base, "Asha", models.PlatformInstagram, "launch") {
		t.Errorf("unexpected link %q", link.UTMLink)
	}
	if len(repo.links) != 0 {
		t.Errorf("expected nothing persisted, got %d", len(repo.links))
	}
}

func TestService_CreateAndSave(t *testing.T) {
	repo := &memoryRepo{}
	svc := NewService(repo, NewGenerator(base, "", ""))

	link, err := svc.Create(context.Background(), models.CreateLinkRequest{
		InfluencerName: "  Asha  ",
		Platform:       models.PlatformInstagram,
		Save:           true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if link.ID == "" {
		t.Fatal("expected an id for a saved link")
	}
	if link.InfluencerName != "Asha" {
		t.Errorf("expected trimmed name, got %q", link.InfluencerName)
	}
	if link.Campaign != DefaultCampaign {
		t.Errorf("expected default campaign, got %q", link.Campaign)
	}
	if link.CreatedAt.IsZero() {
		t.Error("expected createdAt to be set")
	}
	if len(repo.links) != 1 || repo.links[0].ID != link.ID {
		t.Errorf("expected the link to be persisted, got %+v", repo.links)
	}
}

func TestService_CreateAcceptsPlatformCase(t *testing.T) {
	svc := NewService(&memoryRepo{}, NewGenerator(base, "", ""))

	link, err := svc.Create(context.Background(), models.CreateLinkRequest{
		InfluencerName: "Asha",
		Platform:       "instagram",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if link.Platform != models.PlatformInstagram {
		t.Errorf("expected canonical platform, got %q", link.Platform)
	}
	want := NewGenerator(base, "", "").Link("Asha", models.PlatformInstagram, DefaultCampaign)
	if link.UTMLink != want {
		t.Errorf("expected %s, got %s", want, link.UTMLink)
	}
}

func TestService_CreateValidation(t *testing.T) {
	svc := NewService(&memoryRepo{}, NewGenerator(base, "", ""))

	_, err := svc.Create(context.Background(), models.CreateLinkRequest{
		InfluencerName: "   ",
		Platform:       models.PlatformInstagram,
		Save:           true,
	})
	if !validation.IsValidation(err) {
		t.Errorf("expected ValidationError for blank name, got %v", err)
	}

	_, err = svc.Create(context.Background(), models.CreateLinkRequest{
		InfluencerName: "Asha",
		Platform:       "MySpace",
	})
	if !validation.IsValidation(err) {
		t.Errorf("expected ValidationError for unknown platform, got %v", err)
	}
}

func TestService_Delete(t *testing.T) {
	repo := &memoryRepo{}
	svc := NewService(repo, NewGenerator(base, "", ""))
	ctx := context.Background()

	link, err := svc.Create(ctx, models.CreateLinkRequest{InfluencerName: "Asha", Platform: models.PlatformInstagram, Save: true})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := svc.Delete(ctx, link.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	if err := svc.Delete(ctx, link.ID); !validation.IsNotFound(err) {
		t.Errorf("expected NotFoundError on second delete, got %v", err)
	}
}
