package si4707

import "fmt"

// Revision is the GET_REV response.
type Revision struct {
	PartNumber   uint8  `json:"part_number"`
	FirmwareMaj  uint8  `json:"fw_major"`
	FirmwareMin  uint8  `json:"fw_minor"`
	PatchID      uint16 `json:"patch_id"`
	ComponentMaj uint8  `json:"cmp_major"`
	ComponentMin uint8  `json:"cmp_minor"`
	ChipRev      uint8  `json:"chip_rev"`
}

func decodeRevision(b []byte) Revision {
	return Revision{
		PartNumber:   b[1],
		FirmwareMaj:  b[2],
		FirmwareMin:  b[3],
		PatchID:      be16(b, 4),
		ComponentMaj: b[6],
		ComponentMin: b[7],
		ChipRev:      b[8],
	}
}

// Firmware and component revisions are reported as ASCII digits.
func (v Revision) String() string {
	return fmt.Sprintf("Si47%02d fw %c.%c patch 0x%04X cmp %c.%c rev %c",
		v.PartNumber, v.FirmwareMaj, v.FirmwareMin, v.PatchID,
		v.ComponentMaj, v.ComponentMin, v.ChipRev)
}

// PupRevision is the POWER_UP response in query-library mode.
type PupRevision struct {
	PartNumber  uint8 `json:"part_number"`
	FirmwareMaj uint8 `json:"fw_major"`
	FirmwareMin uint8 `json:"fw_minor"`
	ChipRev     uint8 `json:"chip_rev"`
	LibraryID   uint8 `json:"library_id"`
}

func decodePupRevision(b []byte) PupRevision {
	return PupRevision{
		PartNumber:  b[1],
		FirmwareMaj: b[2],
		FirmwareMin: b[3],
		ChipRev:     b[6],
		LibraryID:   b[7],
	}
}

func (v PupRevision) String() string {
	return fmt.Sprintf("Si47%02d fw %c.%c rev %c library %d",
		v.PartNumber, v.FirmwareMaj, v.FirmwareMin, v.ChipRev, v.LibraryID)
}

// readRevision issues GET_REV and stores the answer on r.
func readRevision(r *Radio) (*Revision, error) {
	b, err := r.query("GET_REV", opGetRevision, nil, respGetRevisionLen)
	if err != nil {
		return nil, err
	}
	rev := decodeRevision(b)
	r.Revision = &rev
	return &rev, nil
}
