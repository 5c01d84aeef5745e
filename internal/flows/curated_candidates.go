package flows

import "github.com/google/uuid"

// CuratedCandidatesFlow — имя flow candidate set'а синдицированных материалов.
const CuratedCandidatesFlow = "Curated Corpus Candidates Flow"

// SetupMomentSetID — ID набора для setup moment.
var SetupMomentSetID = uuid.MustParse("deea0f06-9dc9-44a5-b864-fea4a4d0beb7")

const curatedCandidatesSQL = `
SELECT
    APPROVED_CORPUS_ITEM_EXTERNAL_ID AS ID,
    TOPIC
FROM "SCHEDULED_CORPUS_ITEMS"
WHERE LANGUAGE = :language
AND IS_SYNDICATED = TRUE
AND SCHEDULED_CORPUS_ITEM_SCHEDULED_AT BETWEEN DATEADD(day, :scheduled_at_start_day, CURRENT_TIMESTAMP) AND CURRENT_TIMESTAMP
QUALIFY row_number() OVER (PARTITION BY APPROVED_CORPUS_ITEM_EXTERNAL_ID ORDER BY SCHEDULED_CORPUS_ITEM_SCHEDULED_AT DESC) = 1
ORDER BY SCHEDULED_CORPUS_ITEM_SCHEDULED_AT DESC
LIMIT 500
`

// NewCuratedCandidates собирает flow, публикующий до 500 последних
// синдицированных английских материалов за 60 дней.
// Запись строится прямо из результата запроса, без validate.
func NewCuratedCandidates(deps Deps) *Flow {
	return NewCandidateSetFlow(CandidateSet{
		Name:        CuratedCandidatesFlow,
		Description: "Exports recent syndicated EN corpus items as the setup moment candidate set",
		SetID:       SetupMomentSetID,
		SQL:         curatedCandidatesSQL,
		Params: map[string]any{
			"scheduled_at_start_day": -60,
			"language":               "EN",
		},
		Interval: CandidateSetDefaultInterval,
	}, deps)
}
