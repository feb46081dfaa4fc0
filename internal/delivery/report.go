package delivery

// ArtifactStatus is the outcome of one file send.
type ArtifactStatus string

const (
	ArtifactSent       ArtifactStatus = "sent"
	ArtifactMissing    ArtifactStatus = "artifact_missing"
	ArtifactSendFailed ArtifactStatus = "send_failed"
)

// ArtifactOutcome records what happened to one artifact.
type ArtifactOutcome struct {
	Chapter  int
	Filename string
	Status   ArtifactStatus
	Err      error
}

// UnitFailure records a summary unit that could not be sent sequentially.
type UnitFailure struct {
	Index int
	Err   error
}

// TierAttempt records a batch tier that was tried and failed.
type TierAttempt struct {
	Tier Tier
	Err  error
}

// Report summarizes one delivery.
type Report struct {
	Tier         Tier
	FailedTiers  []TierAttempt
	UnitFailures []UnitFailure
	Artifacts    []ArtifactOutcome
}

// Sent returns how many artifacts were delivered.
func (r Report) Sent() int {
	n := 0
	for _, a := range r.Artifacts {
		if a.Status == ArtifactSent {
			n++
		}
	}
	return n
}

// Complete reports whether every artifact was delivered.
func (r Report) Complete() bool {
	return len(r.Artifacts) > 0 && r.Sent() == len(r.Artifacts)
}
