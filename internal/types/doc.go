// Package types is the websocket wire contract.
//
// Every frame is a JSON object {"type": string, "data": object}. Replies to
// createLobby and joinLobby reuse the request type and set "reply": true.
//
// Client → server
//
//	createLobby  {name}
//	joinLobby    {code, name}
//	setReady     {ready}
//	submitNumber {number}          number or numeric string, 1..100
//	sendChat     {code, message}
//	setName      {name}
//
// Server → client
//
//	lobbyUpdate      {code, players: [{id, name, score, eliminated, ready}], roundsPlayed, eliminationInterval}
//	roundStart       {}
//	submissionUpdate {submitted, total}
//	roundResult      {result: {avg, target, exactGuessers, closestId, closestName, closestDiff}, players, roundsPlayed, eliminated}
//	gameOver         {winner: {id, name, score}}
//	chatUpdate       [{name, message, time}]
//	errorMsg         {msg}
package types
