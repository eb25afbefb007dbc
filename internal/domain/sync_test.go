package domain

import "testing"

func TestDeriveSyncStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		latest *SyncTask
		want   SyncStatus
	}{
		{name: "no tasks", latest: nil, want: SyncStatusIdle},
		{name: "pending import", latest: &SyncTask{Action: SyncActionImport, Status: SyncTaskStatusPending}, want: SyncStatusImporting},
		{name: "processing import", latest: &SyncTask{Action: SyncActionImport, Status: SyncTaskStatusProcessing}, want: SyncStatusImporting},
		{name: "processing export", latest: &SyncTask{Action: SyncActionExport, Status: SyncTaskStatusProcessing}, want: SyncStatusExporting},
		{name: "completed", latest: &SyncTask{Action: SyncActionImport, Status: SyncTaskStatusCompleted}, want: SyncStatusIdle},
		{name: "failed", latest: &SyncTask{Action: SyncActionExport, Status: SyncTaskStatusFailed}, want: SyncStatusError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := DeriveSyncStatus(tt.latest); got != tt.want {
				t.Errorf("DeriveSyncStatus() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestProposalStatus_CanTransitionTo(t *testing.T) {
	t.Parallel()

	tests := []struct {
		from ProposalStatus
		to   ProposalStatus
		want bool
	}{
		{ProposalStatusPending, ProposalStatusApproved, true},
		{ProposalStatusPending, ProposalStatusRejected, true},
		{ProposalStatusApproved, ProposalStatusRejected, false},
		{ProposalStatusApproved, ProposalStatusPending, false},
		{ProposalStatusRejected, ProposalStatusApproved, false},
		{ProposalStatusRejected, ProposalStatusPending, false},
		{ProposalStatusPending, ProposalStatusPending, false},
	}
	for _, tt := range tests {
		if got := tt.from.CanTransitionTo(tt.to); got != tt.want {
			t.Errorf("%s -> %s = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}
