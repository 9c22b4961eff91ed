package eth

// orecABI is the subset of the OREC contract interface used by the gateway.
const orecABI = `[
  {"type":"function","name":"propose","stateMutability":"nonpayable",
   "inputs":[{"name":"propId","type":"bytes32"}],"outputs":[]},
  {"type":"function","name":"vote","stateMutability":"nonpayable",
   "inputs":[{"name":"propId","type":"bytes32"},{"name":"vote","type":"uint8"},{"name":"memo","type":"bytes"}],"outputs":[]},
  {"type":"function","name":"execute","stateMutability":"nonpayable",
   "inputs":[{"name":"message","type":"tuple","components":[
     {"name":"addr","type":"address"},{"name":"cdata","type":"bytes"},{"name":"memo","type":"bytes"}]}],
   "outputs":[{"name":"","type":"bool"}]},
  {"type":"function","name":"proposals","stateMutability":"view",
   "inputs":[{"name":"propId","type":"bytes32"}],
   "outputs":[{"name":"createTime","type":"uint256"},{"name":"yesWeight","type":"uint256"},
              {"name":"noWeight","type":"uint256"},{"name":"status","type":"uint8"}]},
  {"type":"function","name":"getStage","stateMutability":"view",
   "inputs":[{"name":"propId","type":"bytes32"}],"outputs":[{"name":"","type":"uint8"}]},
  {"type":"function","name":"getVoteStatus","stateMutability":"view",
   "inputs":[{"name":"propId","type":"bytes32"}],"outputs":[{"name":"","type":"uint8"}]},
  {"type":"function","name":"voteLen","stateMutability":"view",
   "inputs":[],"outputs":[{"name":"","type":"uint64"}]},
  {"type":"event","name":"ProposalCreated","anonymous":false,
   "inputs":[{"name":"propId","type":"bytes32","indexed":true}]},
  {"type":"event","name":"Signal","anonymous":false,
   "inputs":[{"name":"signalType","type":"uint8","indexed":true},{"name":"data","type":"bytes","indexed":false}]}
]`
