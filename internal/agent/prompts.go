package agent

const personalSystem = `You estimate how likely it is that a purchase was made by a specific user at a given location, using only that user's own purchase history.
Always call the location_probability tool with the exact uid and location you are given before answering. Never invent history.`

const personalPrompt = `User id: {{.uid}}
Location: {{.location}}

Call the location_probability tool for this user and location. Then reply with ONLY a JSON object:
{"probability": <number between 0 and 100, or null if the user has no history>, "evidence": [<short strings describing what you considered>], "summary": "<one sentence>"}`

const readerSystem = `You are an expert at reading documents from the document database.
Use the read_document tool to fetch whatever documents the request needs. If a document is missing, say so plainly. Report the fields you found without embellishment.`

const publicSystem = `You estimate how likely it is that a purchase at a given location was made by a user like the target user, based on the purchase activity of other shoppers around that location.
You can ask the document_reader agent to fetch documents describing locations and the shoppers active there. Consult it as often as you need, then answer.`

const publicPrompt = `Target user id: {{.uid}}
Location: {{.location}}
Document collection: {{.collection}}

Look up what is known about shoppers at this location (documents in the collection are usually keyed by the lowercase location name) and judge how alike they are to the target user.
Reply with ONLY a JSON object:
{"probability": <number between 0 and 100, or null if nothing relevant was found>, "evidence": [<document ids or user ids you considered>], "summary": "<one sentence>"}`

const decisionSystem = `You are an expert data analyst. You weigh independent probability estimates against each other, decide how much each deserves to count, choose a sensible threshold, and decide whether the evidence indicates a purchase.`

const decisionPromptHeader = `Decide whether user {{.uid}} made a purchase at {{.location}}.

`

const decisionPromptFooter = `
Weight each estimate by how trustworthy it looks, combine them, pick a threshold, and decide.
Reply with ONLY a JSON object:
{"verdict": "yes" or "no", "score": <combined probability 0-100>, "rationale": "<two or three sentences>"}`
