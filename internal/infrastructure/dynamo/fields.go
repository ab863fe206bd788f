package dynamo

// DynamoDB attribute names used in update and filter expressions across all repos.
const (
	fieldNotificationID     = "notification_id"
	fieldScholarshipID      = "scholarship_id"
	fieldEmail              = "email"
	fieldType               = "type"
	fieldRecipients         = "recipients"
	fieldIsReadBy           = "is_read_by"
	fieldIsActedBy          = "is_acted_by"
	fieldReference          = "reference"
	fieldTitle              = "title"
	fieldScholarshipType    = "scholarship_type"
	fieldGPARequirement     = "gpa_requirement"
	fieldBenefactor         = "benefactor"
	fieldAcademicYear       = "academic_year"
	fieldContractExpiration = "contract_expiration"
	fieldDateVerified       = "date_verified"
	fieldVerifiedBy         = "verified_by"
	fieldIsRevoked          = "is_revoked"
	fieldRevokedBy          = "revoked_by"
	fieldUpdatedAt          = "updated_at"

	indexScholarshipsByEmail = "email-scholarship_id-index"
)
