package database

// DefaultTable is the normalized petitions table produced by the ETL job.
const DefaultTable = "job_market_data_aggressive_normalized"

// Petition table columns
const (
	ColVisaClass       = "VISA_CLASS"
	ColLottery         = "is_lottery_petition"
	ColYear            = "YEAR"
	ColEmployerParent  = "STD_EMPLOYER_NAME_PARENT"
	ColEmployerName    = "EMPLOYER_NAME"
	ColEmployerState   = "EMPLOYER_STATE"
	ColEmployerCity    = "EMPLOYER_CITY"
	ColJobTitle        = "JOB_TITLE"
	ColNormalizedTitle = "NORMALIZED_JOB_TITLE"
	ColSOCTitle        = "aggressive_normalized_soc_title"
	ColPrevailingWage  = "PREVAILING_WAGE"
	ColWageLevel       = "PW_WAGE_LEVEL"
	ColCaseNumber      = "CASE_NUMBER"
	H1BVisaClass       = "H-1B"
)

// WageLevels in ordinal order, entry level first.
var WageLevels = []string{"I", "II", "III", "IV"}

// EntryLevels are the levels treated as entry level (Level I and II).
var EntryLevels = []string{"I", "II"}
