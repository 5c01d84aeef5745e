package flows

import "github.com/google/uuid"

// PocketHitsFlow — имя flow candidate set'а Pocket Hits.
const PocketHitsFlow = "Pocket Hits Candidate Set Flow"

// PocketHitsENSetID — ID набора Pocket Hits (en-US).
var PocketHitsENSetID = uuid.MustParse("92411893-ebdb-4a43-ad29-aa79e56e2136")

const pocketHitsSQL = `
SELECT
    APPROVED_CORPUS_ITEM_EXTERNAL_ID AS ID,
    TOPIC
FROM "SCHEDULED_CORPUS_ITEMS"
WHERE SCHEDULED_SURFACE_ID = :SURFACE_GUID
AND SCHEDULED_CORPUS_ITEM_SCHEDULED_AT BETWEEN DATEADD(day, :MAX_AGE_DAYS, CURRENT_DATE) AND CURRENT_DATE
QUALIFY row_number() OVER (PARTITION BY APPROVED_CORPUS_ITEM_EXTERNAL_ID ORDER BY SCHEDULED_CORPUS_ITEM_SCHEDULED_AT DESC) = 1
ORDER BY SCHEDULED_CORPUS_ITEM_SCHEDULED_AT DESC
`

// NewPocketHits собирает flow, публикующий материалы Pocket Hits
// за последние 9 дней.
func NewPocketHits(deps Deps) *Flow {
	return NewCandidateSetFlow(CandidateSet{
		Name:        PocketHitsFlow,
		Description: "Builds the Pocket Hits en-US candidate set and writes it to the feature store",
		SetID:       PocketHitsENSetID,
		SQL:         pocketHitsSQL,
		Params: map[string]any{
			"MAX_AGE_DAYS": -9,
			"SURFACE_GUID": "POCKET_HITS_EN_US",
		},
		Transform: true,
		Validate:  true,
		Interval:  CandidateSetDefaultInterval,
	}, deps)
}
