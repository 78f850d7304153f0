package zipcode

const byZipQuery = `
query PublicZipcodeByZip($zipCode: String!, $token: String!) {
  publicZipcodeByZip(zipCode: $zipCode, token: $token) {
    id
    zipCode
    stateId
    stateName
    city
    countyFips
    countyName
    countyNamesAll
    countyFipsAll
  }
}`

const suggestionsQuery = `
query PublicZipcodeSuggestions($prefix: String!, $token: String!, $limit: Int) {
  publicZipcodeSuggestions(prefix: $prefix, token: $token, limit: $limit) {
    id
    zipCode
    city
    stateId
    stateName
  }
}`
