package backend

const startLeadMutation = `
mutation PublicStartLead(
  $token: String!
  $household: public_lead_household_input!
  $primary: public_lead_primary_input!
  $context: public_lead_context_input!
) {
  publicStartLead(token: $token, household: $household, primary: $primary, context: $context) {
    success
    leadId
    metadata
    errors {
      field
      message
    }
  }
}`

const updateHouseholdMutation = `
mutation PublicUpdateHousehold(
  $token: String!
  $leadId: ID!
  $members: [public_lead_member_input!]!
  $wizardStep: String
) {
  publicUpdateHousehold(token: $token, leadId: $leadId, members: $members, wizardStep: $wizardStep) {
    success
    metadata
    errors {
      field
      message
    }
  }
}`

const confirmPlanMutation = `
mutation PublicConfirmPlan(
  $token: String!
  $leadId: ID!
  $planSelection: public_lead_plan_selection_input!
  $planResults: public_lead_plan_results_input
  $signatureFormId: String
  $agentId: String
  $sendEmail: Boolean
  $sendSms: Boolean
  $getSigningLink: Boolean
) {
  publicConfirmPlan(
    token: $token
    leadId: $leadId
    planSelection: $planSelection
    planResults: $planResults
    signatureFormId: $signatureFormId
    agentId: $agentId
    sendEmail: $sendEmail
    sendSms: $sendSms
    getSigningLink: $getSigningLink
  ) {
    success
    metadata
    signingLink
    errors {
      field
      message
    }
  }
}`

const checkConsentMutation = `
mutation PublicCheckConsent($token: String!, $leadId: ID!) {
  publicCheckConsent(token: $token, leadId: $leadId) {
    success
    status
    metadata
    errors {
      field
      message
    }
  }
}`
