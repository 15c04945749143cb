package views

import (
	"context"
	"errors"
	"log/slog"

	"github.com/loangraph/marketsync/internal/market"
	"github.com/loangraph/marketsync/internal/poll"
	"github.com/loangraph/marketsync/internal/remote"
)

const NameProfile = "profile"

const onboardingMessage = "You have not completed your profile yet. Fill it in before using the market."

type ProfileAPI interface {
	Profile(ctx context.Context) (*market.Profile, error)
	SaveProfile(ctx context.Context, p market.Profile) error
}

type ProfileSnapshot struct {
	Profile    *market.Profile `json:"profile,omitempty"`
	Onboarding bool            `json:"onboarding"`
	Alert      *Alert          `json:"alert,omitempty"`
}

type profileState struct {
	profile    *market.Profile
	onboarding bool
}

// Profile shows and edits the signed in user's profile. Any failure to read
// it is treated as an unfinished onboarding.
type Profile struct {
	*runner
	api   ProfileAPI
	state *Slot[profileState]
}

func NewProfile(api ProfileAPI, strategy poll.Strategy, logger *slog.Logger) *Profile {
	v := &Profile{
		runner: newRunner(NameProfile, strategy, logger),
		api:    api,
		state:  newSlot[profileState]("profile"),
	}
	v.refresh = v.load
	return v
}

func (v *Profile) load(ctx context.Context) error {
	return load(ctx, v.runner, v.state, func(ctx context.Context) (profileState, error) {
		p, err := v.api.Profile(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return profileState{}, err
			}
			if !errors.Is(err, remote.ErrNoProfile) {
				v.logger.Warn("profile read failed", "err", err)
			}
			return profileState{onboarding: true}, nil
		}
		return profileState{profile: p}, nil
	})
}

func (v *Profile) Save(ctx context.Context, p market.Profile) error {
	return v.act(ctx, func(ctx context.Context) error {
		return v.api.SaveProfile(ctx, p)
	})
}

func (v *Profile) Snapshot() any {
	st := value(v.state)
	snap := ProfileSnapshot{Profile: st.profile, Onboarding: st.onboarding, Alert: v.Alert()}
	if snap.Alert == nil && st.onboarding {
		snap.Alert = &Alert{Severity: SeverityWarning, Message: onboardingMessage}
	}
	return snap
}
