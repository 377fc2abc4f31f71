package storage

import (
	"encoding/json"
	"errors"

	"blobsim/internal/model"
)

const (
	CurrentSchemaVersion = 1
	CurrentCodecVersion  = 1
)

var ErrVersionMismatch = errors.New("record version mismatch")

func Stamp() model.VersionedRecord {
	return model.VersionedRecord{
		SchemaVersion: CurrentSchemaVersion,
		CodecVersion:  CurrentCodecVersion,
	}
}

func EncodeTrial(t model.TrialRecord) ([]byte, error) {
	return json.Marshal(t)
}

func DecodeTrial(data []byte) (model.TrialRecord, error) {
	var trial model.TrialRecord
	if err := json.Unmarshal(data, &trial); err != nil {
		return model.TrialRecord{}, err
	}
	if err := checkVersion(trial.VersionedRecord); err != nil {
		return model.TrialRecord{}, err
	}
	return trial, nil
}

func EncodeSweep(s model.SweepRecord) ([]byte, error) {
	return json.Marshal(s)
}

func DecodeSweep(data []byte) (model.SweepRecord, error) {
	var sweep model.SweepRecord
	if err := json.Unmarshal(data, &sweep); err != nil {
		return model.SweepRecord{}, err
	}
	if err := checkVersion(sweep.VersionedRecord); err != nil {
		return model.SweepRecord{}, err
	}
	return sweep, nil
}

func checkVersion(v model.VersionedRecord) error {
	if v.SchemaVersion != CurrentSchemaVersion || v.CodecVersion != CurrentCodecVersion {
		return ErrVersionMismatch
	}
	return nil
}
