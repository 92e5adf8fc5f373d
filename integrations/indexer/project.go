package indexer

import (
	"fmt"
	"strconv"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"gigchain/core/types"
	"gigchain/native/dispute"
	"gigchain/native/escrow"
)

// project folds one event into the job, dispute and juror tables. Event types
// without a projection (reputation movements) are kept in the raw table only.
func project(tx *gorm.DB, seq uint64, at time.Time, evt *types.Event) error {
	attrs := evt.Attributes
	switch evt.Type {
	case escrow.EventTypeJobCreated:
		id, err := uintAttr(attrs, "jobId")
		if err != nil {
			return err
		}
		return tx.Create(&JobRow{
			ID:         id,
			Client:     attrs["client"],
			Freelancer: attrs["freelancer"],
			Amount:     attrs["amount"],
			Status:     escrow.StatusCreated.String(),
			LastSeq:    seq,
			CreatedAt:  at,
			UpdatedAt:  at,
		}).Error
	case escrow.EventTypeJobFunded:
		return updateJob(tx, attrs, seq, at, map[string]interface{}{"status": escrow.StatusFunded.String()})
	case escrow.EventTypeDeliverySubmitted:
		return updateJob(tx, attrs, seq, at, map[string]interface{}{
			"status":             escrow.StatusDelivered.String(),
			"delivery_reference": attrs["contentRef"],
		})
	case escrow.EventTypeDeliveryConfirmed:
		return updateJob(tx, attrs, seq, at, map[string]interface{}{
			"status":            escrow.StatusConfirmed.String(),
			"reputation_minted": attrs["reputationMinted"],
			"settled_to":        attrs["freelancer"],
		})
	case escrow.EventTypeJobDisputed:
		return updateJob(tx, attrs, seq, at, map[string]interface{}{"status": escrow.StatusDisputed.String()})
	case escrow.EventTypeRefunded, escrow.EventTypeReleased:
		return updateJob(tx, attrs, seq, at, map[string]interface{}{
			"resolved":   true,
			"settled_to": attrs["to"],
		})
	case dispute.EventTypeJurorRegistered:
		if attrs["existing"] == "true" {
			return nil
		}
		return tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&JurorRow{Address: attrs["juror"], RegisteredAt: at, Seq: seq}).Error
	case dispute.EventTypeDisputeCreated:
		return createDispute(tx, attrs, seq, at)
	case dispute.EventTypeVoteCast:
		return castVote(tx, attrs, seq, at)
	case dispute.EventTypeDisputeResolved:
		return resolveDispute(tx, attrs, seq, at)
	}
	return nil
}

func uintAttr(attrs map[string]string, key string) (uint64, error) {
	raw, ok := attrs[key]
	if !ok {
		return 0, fmt.Errorf("missing %s", key)
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}

func updateJob(tx *gorm.DB, attrs map[string]string, seq uint64, at time.Time, fields map[string]interface{}) error {
	id, err := uintAttr(attrs, "jobId")
	if err != nil {
		return err
	}
	fields["last_seq"] = seq
	fields["updated_at"] = at
	res := tx.Model(&JobRow{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("job %d not projected", id)
	}
	return nil
}

func createDispute(tx *gorm.DB, attrs map[string]string, seq uint64, at time.Time) error {
	id, err := uintAttr(attrs, "disputeId")
	if err != nil {
		return err
	}
	row := DisputeRow{
		ID:         id,
		Client:     attrs["client"],
		Freelancer: attrs["freelancer"],
		Reason:     attrs["reason"],
		Fee:        attrs["fee"],
		LastSeq:    seq,
		CreatedAt:  at,
		UpdatedAt:  at,
	}
	if _, linked := attrs["jobId"]; linked {
		if row.JobID, err = uintAttr(attrs, "jobId"); err != nil {
			return err
		}
	}
	if err := tx.Create(&row).Error; err != nil {
		return err
	}
	if row.JobID == 0 {
		return nil
	}
	return updateJob(tx, attrs, seq, at, map[string]interface{}{"dispute_id": id})
}

func castVote(tx *gorm.DB, attrs map[string]string, seq uint64, at time.Time) error {
	id, err := uintAttr(attrs, "disputeId")
	if err != nil {
		return err
	}
	column := "votes_client"
	if dispute.ParseSide(attrs["side"]) == dispute.SideFreelancer {
		column = "votes_freelancer"
	}
	return tx.Model(&DisputeRow{}).Where("id = ?", id).Updates(map[string]interface{}{
		column:       gorm.Expr(column+" + ?", 1),
		"last_seq":   seq,
		"updated_at": at,
	}).Error
}

func resolveDispute(tx *gorm.DB, attrs map[string]string, seq uint64, at time.Time) error {
	id, err := uintAttr(attrs, "disputeId")
	if err != nil {
		return err
	}
	votesClient, err := uintAttr(attrs, "votesClient")
	if err != nil {
		return err
	}
	votesFreelancer, err := uintAttr(attrs, "votesFreelancer")
	if err != nil {
		return err
	}
	err = tx.Model(&DisputeRow{}).Where("id = ?", id).Updates(map[string]interface{}{
		"resolved":         true,
		"winner":           attrs["winner"],
		"winning_side":     attrs["side"],
		"votes_client":     votesClient,
		"votes_freelancer": votesFreelancer,
		"last_seq":         seq,
		"updated_at":       at,
	}).Error
	if err != nil {
		return err
	}
	if _, linked := attrs["jobId"]; !linked {
		return nil
	}
	return updateJob(tx, attrs, seq, at, map[string]interface{}{
		"resolved":   true,
		"settled_to": attrs["winner"],
	})
}
